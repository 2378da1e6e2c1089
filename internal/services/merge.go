package services

import (
	"strings"

	"github.com/soaringjerry/cracks/internal/models"
)

// MergePayload overlays incoming on existing at the top level only: keys in
// incoming win, keys only in existing survive, nested objects are replaced
// wholesale. Neither input is modified.
func MergePayload(existing, incoming models.Payload) models.Payload {
	merged := make(models.Payload, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

// DecodePriorPayload reads a stored payload field. A missing, blank or
// malformed field yields an empty payload together with the decode error, so
// callers can log it and carry on.
func DecodePriorPayload(blob string) (models.Payload, error) {
	if strings.TrimSpace(blob) == "" {
		return models.Payload{}, nil
	}
	p, err := models.DecodePayload([]byte(blob))
	if err != nil {
		return models.Payload{}, err
	}
	return p, nil
}
