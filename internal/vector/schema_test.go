package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/weaviate/weaviate/entities/models"
)

type MockSchemaClient struct {
	CreatedClass    *models.Class
	ExistingClass   *models.Class
	AddedProperties []*models.Property
	ExistsErr       error
}

func (m *MockSchemaClient) ClassExists(ctx context.Context, className string) (bool, error) {
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	return m.ExistingClass != nil, nil
}

func (m *MockSchemaClient) CreateClass(ctx context.Context, class *models.Class) error {
	m.CreatedClass = class
	return nil
}

func (m *MockSchemaClient) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return m.ExistingClass, nil
}

func (m *MockSchemaClient) AddProperty(ctx context.Context, className string, property *models.Property) error {
	m.AddedProperties = append(m.AddedProperties, property)
	return nil
}

func TestEnsureSchema_CreatesClass(t *testing.T) {
	client := &MockSchemaClient{}
	if err := EnsureSchema(context.Background(), client); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	if client.CreatedClass == nil {
		t.Fatal("Class not created")
	}
	if client.CreatedClass.Class != ClassName {
		t.Errorf("Class name = %q, want %q", client.CreatedClass.Class, ClassName)
	}
	if client.CreatedClass.Vectorizer != "none" {
		t.Errorf("Vectorizer = %q, want none", client.CreatedClass.Vectorizer)
	}

	expectedProps := map[string]string{
		PropRecordID:   "text",
		PropText:       "text",
		PropSource:     "text",
		PropChunkIndex: "int",
	}
	if len(client.CreatedClass.Properties) != len(expectedProps) {
		t.Fatalf("Got %d properties, want %d", len(client.CreatedClass.Properties), len(expectedProps))
	}
	for _, prop := range client.CreatedClass.Properties {
		expectedType, ok := expectedProps[prop.Name]
		if !ok {
			t.Errorf("Unexpected property %s", prop.Name)
			continue
		}
		if len(prop.DataType) == 0 || prop.DataType[0] != expectedType {
			t.Errorf("Property %s has wrong DataType: %v (expected %s)", prop.Name, prop.DataType, expectedType)
		}
		if (prop.Name == PropSource || prop.Name == PropRecordID) && prop.Tokenization != "field" {
			t.Errorf("Property %s should use field tokenization, got %q", prop.Name, prop.Tokenization)
		}
	}
}

func TestEnsureSchema_AddsMissingProperties(t *testing.T) {
	client := &MockSchemaClient{
		ExistingClass: &models.Class{
			Class: ClassName,
			Properties: []*models.Property{
				{Name: PropText, DataType: []string{"text"}},
				{Name: PropChunkIndex, DataType: []string{"int"}},
			},
		},
	}

	if err := EnsureSchema(context.Background(), client); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	if client.CreatedClass != nil {
		t.Fatal("Should not recreate class if it exists")
	}

	addedNames := make(map[string]bool)
	for _, p := range client.AddedProperties {
		addedNames[p.Name] = true
	}
	if !addedNames[PropSource] || !addedNames[PropRecordID] {
		t.Errorf("Missing properties not added: %v", addedNames)
	}
	if addedNames[PropText] {
		t.Error("Should not re-add existing 'text' property")
	}
}

func TestEnsureSchema_UpToDate(t *testing.T) {
	client := &MockSchemaClient{
		ExistingClass: &models.Class{Class: ClassName, Properties: Properties()},
	}
	if err := EnsureSchema(context.Background(), client); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	if len(client.AddedProperties) != 0 {
		t.Errorf("Expected no property changes, got %d", len(client.AddedProperties))
	}
}

func TestEnsureSchema_Error(t *testing.T) {
	client := &MockSchemaClient{ExistsErr: errors.New("connection refused")}
	if err := EnsureSchema(context.Background(), client); err == nil {
		t.Fatal("Expected error")
	}
}
