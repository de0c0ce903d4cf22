package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/repository"
	"app/internal/storage"
	"app/internal/util"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrModelFailure marks an upstream image-model failure. The debit that
// preceded the call has already landed and is not refunded.
var ErrModelFailure = errors.New("image model failure")

// GenerationService is the end-to-end orchestrator for one try-on request:
// debit the entitlement, call the image model, persist the artifact, record
// the audit event.
type GenerationService interface {
	Generate(ctx context.Context, userID, requestID string, img model.InlineImage, params model.StyleParams) (*model.GenerationResult, error)
	// ListRecent returns the latest audit events with resolved artifact URLs.
	ListRecent(ctx context.Context, limit int) ([]model.GenerationAuditEvent, []string, error)
}

type generationService struct {
	ents    EntitlementService
	editor  ImageEditor
	audit   repository.AuditRepository
	store   storage.Store
	timeout time.Duration
	logger  zerolog.Logger
}

// NewGenerationService creates a GenerationService with a scoped logger.
func NewGenerationService(
	ents EntitlementService,
	editor ImageEditor,
	audit repository.AuditRepository,
	store storage.Store,
	timeout time.Duration,
	logger zerolog.Logger,
) GenerationService {
	return &generationService{
		ents:    ents,
		editor:  editor,
		audit:   audit,
		store:   store,
		timeout: timeout,
		logger:  logger.With().Str("service", "GenerationService").Logger(),
	}
}

func (s *generationService) Generate(ctx context.Context, userID, requestID string, img model.InlineImage, params model.StyleParams) (*model.GenerationResult, error) {
	// Fail-closed reservation: the debit lands before the model call, and a
	// failed render does not refund it. If we cannot record the debit, no
	// work is done on the user's behalf.
	budget, _, err := s.ents.Debit(ctx, userID, time.Now())
	if err != nil {
		return nil, err
	}

	editCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	edited, err := s.editor.Edit(editCtx, img, params)
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", userID).
			Str("request_id", requestID).
			Str("budget", string(budget)).
			Msg("Image model call failed after debit")
		return nil, fmt.Errorf("%w: %s", ErrModelFailure, err)
	}

	result := &model.GenerationResult{
		MimeType: edited.MimeType,
		Budget:   budget,
	}

	// Persist the artifact; on failure the caller still gets the image.
	key := fmt.Sprintf("generations/%s/%s/%s/%s.%s",
		params.Preset, params.Shade, params.Length, uuid.NewString(), util.ExtensionForMimeType(edited.MimeType))
	if err := s.store.Put(ctx, key, edited.Data, edited.MimeType); err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID).Str("storage_path", key).Msg("Failed to persist generated artifact")
		result.ImageBase64 = base64.StdEncoding.EncodeToString(edited.Data)
	} else {
		result.StoragePath = key
		url, err := s.store.URL(ctx, key)
		if err != nil {
			s.logger.Error().Err(err).Str("request_id", requestID).Str("storage_path", key).Msg("Failed to resolve artifact URL")
			result.ImageBase64 = base64.StdEncoding.EncodeToString(edited.Data)
		} else {
			result.URL = url
		}
	}

	// Audit is observability only; its failure never reaches the caller.
	ev := &model.GenerationAuditEvent{
		UserID:         userID,
		Kind:           budget,
		Preset:         params.Preset,
		Shade:          params.Shade,
		Length:         params.Length,
		RequestID:      requestID,
		OutputMimeType: edited.MimeType,
		StoragePath:    result.StoragePath,
	}
	if err := s.audit.Insert(ctx, ev); err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID).Msg("Failed to record generation audit event")
	}

	return result, nil
}

func (s *generationService) ListRecent(ctx context.Context, limit int) ([]model.GenerationAuditEvent, []string, error) {
	events, err := s.audit.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list recent generations")
		return nil, nil, err
	}
	urls := make([]string, len(events))
	for i, ev := range events {
		if ev.StoragePath == "" {
			continue
		}
		url, err := s.store.URL(ctx, ev.StoragePath)
		if err != nil {
			s.logger.Warn().Err(err).Str("storage_path", ev.StoragePath).Msg("Could not resolve artifact URL")
			continue
		}
		urls[i] = url
	}
	return events, urls, nil
}
