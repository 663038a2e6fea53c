package repository

import (
	"context"
	"fmt"
	"net/url"
	"sort"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"mydayplanner/model"
)

func integrationDocID(userID string, provider model.Provider) string {
	return userID + "_" + string(provider)
}

// Calendar ids may contain characters that are not allowed in document ids.
func settingDocID(userID, calendarID string) string {
	return userID + "_" + url.PathEscape(calendarID)
}

func (s *FirestoreStore) GetIntegration(ctx context.Context, userID string, provider model.Provider) (*model.Integration, error) {
	doc, err := s.client.Collection(integrationsCollection).Doc(integrationDocID(userID, provider)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get integration: %w", err)
	}
	var integration model.Integration
	if err := doc.DataTo(&integration); err != nil {
		return nil, fmt.Errorf("decode integration: %w", err)
	}
	return &integration, nil
}

// SaveIntegration replaces the whole credential document.
func (s *FirestoreStore) SaveIntegration(ctx context.Context, integration *model.Integration) error {
	ref := s.client.Collection(integrationsCollection).Doc(integrationDocID(integration.UserID, integration.Provider))
	if _, err := ref.Set(ctx, integration); err != nil {
		return fmt.Errorf("save integration: %w", err)
	}
	return nil
}

// SaveRefreshedToken re-reads the credential inside a transaction and only writes the new
// tokens while it is still connected with the refresh token the exchange used.
func (s *FirestoreStore) SaveRefreshedToken(ctx context.Context, integration *model.Integration, previousRefreshToken string) error {
	ref := s.client.Collection(integrationsCollection).Doc(integrationDocID(integration.UserID, integration.Provider))
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrConflict
			}
			return fmt.Errorf("get integration: %w", err)
		}
		var current model.Integration
		if err := doc.DataTo(&current); err != nil {
			return fmt.Errorf("decode integration: %w", err)
		}
		if !current.Connected || current.RefreshToken != previousRefreshToken {
			return ErrConflict
		}
		var expires interface{} = firestore.Delete
		if integration.TokenExpiresAt != nil {
			expires = *integration.TokenExpiresAt
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "accesstoken", Value: integration.AccessToken},
			{Path: "refreshtoken", Value: integration.RefreshToken},
			{Path: "tokenexpiresat", Value: expires},
			{Path: "updatedat", Value: integration.UpdatedAt},
		})
	})
}

// UpsertCalendarSetting writes the document named by the natural key, so concurrent
// toggles can never produce two rows for one (user, calendar).
func (s *FirestoreStore) UpsertCalendarSetting(ctx context.Context, setting *model.CalendarSetting) error {
	ref := s.client.Collection(settingsCollection).Doc(settingDocID(setting.UserID, setting.CalendarID))
	if _, err := ref.Set(ctx, setting); err != nil {
		return fmt.Errorf("upsert calendar setting: %w", err)
	}
	return nil
}

func (s *FirestoreStore) ListCalendarSettings(ctx context.Context, userID string) ([]model.CalendarSetting, error) {
	docs, err := s.client.Collection(settingsCollection).Where("userid", "==", userID).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("list calendar settings: %w", err)
	}
	settings := make([]model.CalendarSetting, 0, len(docs))
	for _, doc := range docs {
		var setting model.CalendarSetting
		if err := doc.DataTo(&setting); err != nil {
			return nil, fmt.Errorf("decode calendar setting: %w", err)
		}
		settings = append(settings, setting)
	}
	sort.Slice(settings, func(i, j int) bool { return settings[i].CalendarID < settings[j].CalendarID })
	return settings, nil
}
