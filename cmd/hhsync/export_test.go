package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/hhsurvey/hhsync/internal/survey/schema"
	"github.com/hhsurvey/hhsync/internal/survey/sync"
)

func sampleUnsynced() *sync.UnsyncedData {
	weight := 61.5
	return &sync.UnsyncedData{
		Households: []*schema.Household{
			{ID: 1, HouseholdNumber: "HH-001", Barangay: "San Isidro", Revision: 1},
		},
		Members: []*schema.Member{
			{ID: 1, HouseholdID: 1, FirstName: "Ana", LastName: "Reyes", WeightKg: &weight, Revision: 2},
			{ID: 2, HouseholdID: 1, FirstName: "Ben", LastName: "Reyes", Revision: 1},
		},
	}
}

func TestExportUnsynced(t *testing.T) {
	doc := exportUnsynced(sampleUnsynced())

	if got := doc.Rows(); got != 3 {
		t.Fatalf("Rows() = %d, want 3", got)
	}
	members := doc[schema.TableMembers]
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0]["weight_kg"] != 61.5 {
		t.Errorf("weight_kg = %v, want 61.5", members[0]["weight_kg"])
	}
	if _, ok := members[1]["weight_kg"]; ok {
		t.Error("null weight_kg should be left out")
	}
	if members[0]["revision"] != int64(2) || members[0]["synced"] != false {
		t.Errorf("bookkeeping columns wrong: %v", members[0])
	}
	if _, ok := doc[schema.TableImmunization]; ok {
		t.Error("empty tables should be absent")
	}
}

func TestEncodeExport(t *testing.T) {
	doc := exportUnsynced(sampleUnsynced())

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := encodeExport(&buf, "json", doc); err != nil {
			t.Fatalf("encodeExport() failed: %v", err)
		}
		var back map[string][]map[string]any
		if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if back[schema.TableHouseholds][0]["household_number"] != "HH-001" {
			t.Errorf("unexpected households: %v", back[schema.TableHouseholds])
		}
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := encodeExport(&buf, "yaml", doc); err != nil {
			t.Fatalf("encodeExport() failed: %v", err)
		}
		var back map[string][]map[string]any
		if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil {
			t.Fatalf("output is not YAML: %v", err)
		}
		if len(back[schema.TableMembers]) != 2 {
			t.Errorf("expected 2 members, got %v", back[schema.TableMembers])
		}
	})

	t.Run("toml", func(t *testing.T) {
		var buf bytes.Buffer
		if err := encodeExport(&buf, "toml", doc); err != nil {
			t.Fatalf("encodeExport() failed: %v", err)
		}
		if !strings.Contains(buf.String(), "[[members]]") {
			t.Errorf("expected array of tables, got:\n%s", buf.String())
		}
		var back map[string][]map[string]any
		if _, err := toml.Decode(buf.String(), &back); err != nil {
			t.Fatalf("output is not TOML: %v", err)
		}
		if back[schema.TableMembers][1]["first_name"] != "Ben" {
			t.Errorf("unexpected members: %v", back[schema.TableMembers])
		}
	})
}

func TestExportFormat(t *testing.T) {
	tests := []struct {
		flag, output string
		want         string
		wantErr      bool
	}{
		{"", "", "json", false},
		{"", "out.yml", "yaml", false},
		{"", "out.TOML", "toml", false},
		{"YAML", "out.json", "yaml", false},
		{"csv", "", "", true},
	}
	for _, tt := range tests {
		got, err := exportFormat(tt.flag, tt.output)
		if (err != nil) != tt.wantErr {
			t.Errorf("exportFormat(%q, %q) error = %v, wantErr %v", tt.flag, tt.output, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("exportFormat(%q, %q) = %q, want %q", tt.flag, tt.output, got, tt.want)
		}
	}
}
