package prepsheet

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/healthprep/healthprep/internal/platform/audit"
)

// FHIRWriter is the subset of fhirclient.Client write-back needs.
type FHIRWriter interface {
	PostDocumentReference(ctx context.Context, tenantID, providerID uuid.UUID, resource json.RawMessage) (string, error)
}

// Writer posts a generated PrepSheet back to the EMR as a DocumentReference
// (spec §4.6), or simulates the write in dry-run mode.
type Writer struct {
	client FHIRWriter
	audit  *audit.Writer
}

func NewWriter(client FHIRWriter, auditWriter *audit.Writer) *Writer {
	return &Writer{client: client, audit: auditWriter}
}

type coding struct {
	System  string `json:"system"`
	Code    string `json:"code"`
	Display string `json:"display"`
}

type codeableConcept struct {
	Coding []coding `json:"coding"`
}

type reference struct {
	Reference string `json:"reference"`
}

type attachment struct {
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
	Title       string `json:"title"`
}

type documentContent struct {
	Attachment attachment `json:"attachment"`
}

type documentReferenceResource struct {
	ResourceType string            `json:"resourceType"`
	Status       string            `json:"status"`
	Type         codeableConcept   `json:"type"`
	Subject      reference         `json:"subject"`
	Content      []documentContent `json:"content"`
	Date         string            `json:"date"`
}

// WriteBack posts sheet to the EMR for providerID/epicPatientID. When
// dryRun is true (a tenant setting), no outbound call is made and a
// synthetic "dryrun-" id is returned; the audit entry records the dry-run
// write, but the payload itself is not logged.
func (w *Writer) WriteBack(ctx context.Context, tenantID, providerID, userID uuid.UUID, epicPatientID string, sheet *PrepSheet, dryRun bool) (string, error) {
	resource := documentReferenceResource{
		ResourceType: "DocumentReference",
		Status:       "current",
		Date:         sheet.GeneratedAt.UTC().Format(time.RFC3339),
		Type: codeableConcept{
			Coding: []coding{{System: "http://loinc.org", Code: WriteBackLOINCCode, Display: "Patient Summary"}},
		},
		Subject: reference{Reference: "Patient/" + epicPatientID},
		Content: []documentContent{{
			Attachment: attachment{
				ContentType: "application/pdf",
				Data:        base64.StdEncoding.EncodeToString(sheet.PDF),
				Title:       sheet.SafeTitle(),
			},
		}},
	}

	payload, err := json.Marshal(resource)
	if err != nil {
		return "", fmt.Errorf("prepsheet: marshal write-back payload: %w", err)
	}

	var id string
	if dryRun {
		sheet.DryRun = true
		id = "dryrun-" + uuid.New().String()
	} else {
		id, err = w.client.PostDocumentReference(ctx, tenantID, providerID, payload)
		if err != nil {
			return "", fmt.Errorf("prepsheet: post DocumentReference: %w", err)
		}
	}
	sheet.EpicDocumentReferenceID = id

	if w.audit != nil {
		uid := userID
		if logErr := w.audit.Log(ctx, &audit.Entry{
			TenantID:     tenantID,
			UserID:       &uid,
			EventType:    audit.EventEpicDocumentWrite,
			ResourceType: "DocumentReference",
			PatientHash:  w.audit.HashIdentifier(sheet.PatientID.String()),
			Data: map[string]any{
				"dry_run":      dryRun,
				"document_id":  id,
				"epic_patient": epicPatientID,
			},
		}); logErr != nil {
			return id, logErr
		}
	}

	return id, nil
}
