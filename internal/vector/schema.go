package vector

import (
	"context"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// ClassName is the Weaviate class holding one object per document chunk.
const ClassName = "DocumentChunk"

// Property names of ClassName.
const (
	PropRecordID   = "recordId"
	PropText       = "text"
	PropSource     = "source"
	PropChunkIndex = "chunkIndex"
)

// SchemaClient is the subset of the Weaviate schema API used at startup.
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
}

// Properties returns the chunk class properties. Identifiers use field
// tokenization so equality filters match whole file names.
func Properties() []*models.Property {
	return []*models.Property{
		{Name: PropRecordID, DataType: []string{"text"}, Tokenization: "field"},
		{Name: PropText, DataType: []string{"text"}},
		{Name: PropSource, DataType: []string{"text"}, Tokenization: "field"},
		{Name: PropChunkIndex, DataType: []string{"int"}},
	}
}

// EnsureSchema creates the chunk class, or adds properties missing from an
// existing one. Vectors are always supplied by the caller.
func EnsureSchema(ctx context.Context, client SchemaClient) error {
	exists, err := client.ClassExists(ctx, ClassName)
	if err != nil {
		return err
	}

	if !exists {
		return client.CreateClass(ctx, &models.Class{
			Class:       ClassName,
			Description: "A chunk of an ingested document",
			Vectorizer:  "none",
			Properties:  Properties(),
		})
	}

	class, err := client.GetClass(ctx, ClassName)
	if err != nil {
		return err
	}

	existing := make(map[string]bool)
	for _, p := range class.Properties {
		existing[p.Name] = true
	}
	for _, p := range Properties() {
		if existing[p.Name] {
			continue
		}
		if err := client.AddProperty(ctx, ClassName, p); err != nil {
			return err
		}
	}
	return nil
}

type weaviateSchema struct {
	schema *weaviate.Client
}

// NewSchemaClient adapts a Weaviate client to SchemaClient.
func NewSchemaClient(client *weaviate.Client) SchemaClient {
	return weaviateSchema{schema: client}
}

func (w weaviateSchema) ClassExists(ctx context.Context, className string) (bool, error) {
	return w.schema.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (w weaviateSchema) CreateClass(ctx context.Context, class *models.Class) error {
	return w.schema.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (w weaviateSchema) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return w.schema.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (w weaviateSchema) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return w.schema.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}
