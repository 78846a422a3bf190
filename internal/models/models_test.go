package models

import (
	"reflect"
	"strings"
	"testing"
)

// gormTag extracts the gorm tag from a struct field.
func gormTag(t *testing.T, typ reflect.Type, fieldName string) string {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	return f.Tag.Get("gorm")
}

// assertGormTag checks that a struct field's gorm tag contains the expected value.
func assertGormTag(t *testing.T, typ reflect.Type, fieldName, expected string) {
	t.Helper()
	tag := gormTag(t, typ, fieldName)
	if !strings.Contains(tag, expected) {
		t.Errorf("%s.%s gorm tag = %q, want to contain %q", typ.Name(), fieldName, tag, expected)
	}
}

// assertFieldType checks that a struct field has the expected Go type.
func assertFieldType(t *testing.T, typ reflect.Type, fieldName, expectedType string) {
	t.Helper()
	f, ok := typ.FieldByName(fieldName)
	if !ok {
		t.Fatalf("%s.%s: field not found", typ.Name(), fieldName)
	}
	got := f.Type.String()
	if got != expectedType {
		t.Errorf("%s.%s type = %q, want %q", typ.Name(), fieldName, got, expectedType)
	}
}

func TestConversation_Fields(t *testing.T) {
	typ := reflect.TypeOf(Conversation{})

	assertGormTag(t, typ, "DialogID", "primaryKey")
	assertGormTag(t, typ, "DialogID", "size:64")
	assertGormTag(t, typ, "Status", "not null")
	assertGormTag(t, typ, "Status", "default:active")
	assertGormTag(t, typ, "Status", "index")
	assertGormTag(t, typ, "SessionRef", "size:128")
	assertGormTag(t, typ, "LeadID", "size:32")

	assertFieldType(t, typ, "DialogID", "string")
	assertFieldType(t, typ, "Status", "string")
	assertFieldType(t, typ, "CreatedAt", "time.Time")
	assertFieldType(t, typ, "UpdatedAt", "time.Time")
}

func TestPendingBuffer_Fields(t *testing.T) {
	typ := reflect.TypeOf(PendingBuffer{})

	assertGormTag(t, typ, "ID", "primaryKey")
	assertGormTag(t, typ, "ID", "autoIncrement")
	assertGormTag(t, typ, "DialogID", "uniqueIndex")
	assertGormTag(t, typ, "DialogID", "not null")
	assertGormTag(t, typ, "AccumulatedText", "type:text")
	assertGormTag(t, typ, "LastTouchedAt", "index")

	assertFieldType(t, typ, "AccumulatedText", "string")
	assertFieldType(t, typ, "LastTouchedAt", "time.Time")
}

func TestStatusConstants(t *testing.T) {
	if StatusActive != "active" {
		t.Errorf("StatusActive = %q, want %q", StatusActive, "active")
	}
	if StatusStopped != "stopped" {
		t.Errorf("StatusStopped = %q, want %q", StatusStopped, "stopped")
	}
}
