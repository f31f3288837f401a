package fhirmodels

import (
	"encoding/json"
	"testing"
)

func TestRawResource_RoundTrip(t *testing.T) {
	in := []byte(`{"resourceType":"Observation","id":"obs-1","valueQuantity":{"value":7.2}}`)

	var r RawResource
	if err := json.Unmarshal(in, &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.ResourceType != "Observation" || r.ID != "obs-1" {
		t.Fatalf("got ResourceType=%q ID=%q", r.ResourceType, r.ID)
	}

	out, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var roundTripped map[string]any
	if err := json.Unmarshal(out, &roundTripped); err != nil {
		t.Fatalf("unmarshal round-tripped: %v", err)
	}
	if roundTripped["resourceType"] != "Observation" {
		t.Error("expected round-tripped JSON to preserve resourceType")
	}
	if _, ok := roundTripped["valueQuantity"]; !ok {
		t.Error("expected round-tripped JSON to preserve fields not modeled by RawResource")
	}
}

func TestPatient_Decode(t *testing.T) {
	in := []byte(`{
		"resourceType": "Patient",
		"id": "pat-1",
		"name": [{"family": "Doe", "given": ["Jane"]}],
		"gender": "female",
		"birthDate": "1980-01-01"
	}`)
	var p Patient
	if err := json.Unmarshal(in, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.Gender != "female" || p.BirthDate != "1980-01-01" {
		t.Errorf("unexpected decode: %+v", p)
	}
	if len(p.Name) != 1 || p.Name[0].Family != "Doe" {
		t.Errorf("unexpected name decode: %+v", p.Name)
	}
}

func TestCondition_Decode(t *testing.T) {
	in := []byte(`{
		"resourceType": "Condition",
		"id": "cond-1",
		"subject": {"reference": "Patient/pat-1"},
		"code": {"coding": [{"system": "http://hl7.org/fhir/sid/icd-10-cm", "code": "E11.9"}]},
		"clinicalStatus": {"text": "active"}
	}`)
	var c Condition
	if err := json.Unmarshal(in, &c); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if c.Subject.Reference != "Patient/pat-1" {
		t.Errorf("unexpected subject: %+v", c.Subject)
	}
	if len(c.Code.Coding) != 1 || c.Code.Coding[0].Code != "E11.9" {
		t.Errorf("unexpected code: %+v", c.Code)
	}
}
