package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"educa/internal/audit"
	"educa/internal/enrollment/models"
	dErrors "educa/pkg/domain-errors"
	"educa/pkg/platform/sentinel"
	"educa/pkg/requestcontext"
)

// Attach stores the uploaded files and links them to an existing
// enrollment. Nothing is left behind when validation or the insert fails.
func (s *Service) Attach(ctx context.Context, upload *models.DocumentUpload) (*models.Documents, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.Attach")
	defer span.End()

	enrollmentID, err := upload.Validate()
	if err != nil {
		return nil, s.fail(span, err)
	}
	span.SetAttributes(attribute.Int64("enrollment.id", enrollmentID))

	if _, err := s.store.GetRecord(ctx, enrollmentID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, s.fail(span, unknownEnrollment(enrollmentID))
		}
		return nil, s.fail(span, s.translate(ctx, err, "failed to load enrollment"))
	}
	if _, err := s.store.GetDocuments(ctx, enrollmentID); err == nil {
		return nil, s.fail(span, documentsExist())
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, s.fail(span, s.translate(ctx, err, "failed to load documents"))
	}

	docs := &models.Documents{EnrollmentID: enrollmentID, CreatedAt: requestcontext.Now(ctx)}
	if err := s.writeBlobs(ctx, span, docs, upload.Files); err != nil {
		s.removeBlobs(ctx, docs.Keys())
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store documents"))
	}

	if err := s.store.CreateDocuments(ctx, docs); err != nil {
		s.removeBlobs(ctx, docs.Keys())
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return nil, s.fail(span, documentsExist())
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, s.fail(span, unknownEnrollment(enrollmentID))
		}
		return nil, s.fail(span, s.translate(ctx, err, "failed to save documents"))
	}

	if s.metrics != nil {
		s.metrics.DocumentsAttached.Inc()
	}
	s.logAudit(ctx, audit.ActionDocumentsAttached, enrollmentID, "files", len(upload.Files))
	return docs, nil
}

func (s *Service) writeBlobs(ctx context.Context, span trace.Span, docs *models.Documents, files map[models.DocumentKind]models.UploadFile) error {
	for _, kind := range models.DocumentKinds {
		file, ok := files[kind]
		if !ok {
			continue
		}
		filename := models.SafeFilename(file.Filename)
		key := fmt.Sprintf("documents/%d/%s-%s", docs.EnrollmentID, uuid.NewString(), filename)
		obj, err := s.blobs.Put(ctx, key, file.Content)
		if err != nil {
			return fmt.Errorf("put %s: %w", kind, err)
		}
		*docs.Slot(kind) = &models.FileRef{
			Key:         obj.Key,
			Filename:    filename,
			ContentType: file.ContentType,
			Size:        obj.Size,
			Checksum:    obj.Checksum,
		}
		span.AddEvent("blob.stored", trace.WithAttributes(attribute.String("kind", string(kind)), attribute.Int64("size", obj.Size)))
	}
	return nil
}

// GetDocuments returns the document set of an enrollment.
func (s *Service) GetDocuments(ctx context.Context, enrollmentID int64) (*models.Documents, error) {
	docs, err := s.store.GetDocuments(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "documents not found")
		}
		return nil, s.translate(ctx, err, "failed to load documents")
	}
	return docs, nil
}

func unknownEnrollment(id int64) error {
	return dErrors.Validation("invalid document upload", map[string]string{
		"enrollment": `Invalid pk "` + strconv.FormatInt(id, 10) + `" - object does not exist.`,
	})
}

func documentsExist() error {
	return &dErrors.Error{
		Code:    dErrors.CodeConflict,
		Message: "documents already attached to this enrollment",
		Fields:  map[string]string{"enrollment": "enrollment document with this enrollment already exists."},
	}
}
