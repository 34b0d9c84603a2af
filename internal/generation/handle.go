package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"simulation-server/internal/models"
)

// JobHandle is the opaque, serialisable reference to a provider's long-running video job.
// Outside the renderer that created it only IsDone and ResultAssetRef may be consulted;
// Payload belongs to the provider.
type JobHandle struct {
	Provider string          `json:"provider"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Done     bool            `json:"done"`
	AssetRef string          `json:"asset_ref,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// IsDone reports whether the provider considers the job finished (successfully or not).
func (h JobHandle) IsDone() bool {
	return h.Done
}

// ResultAssetRef returns the provider reference of the rendered asset, empty if none.
func (h JobHandle) ResultAssetRef() string {
	return h.AssetRef
}

// Encode сериализует дескриптор для хранения в строке videos.job_handle.
func (h JobHandle) Encode() (string, error) {
	if strings.TrimSpace(h.Provider) == "" {
		return "", fmt.Errorf("%w: job handle without provider", models.ErrInvalidInput)
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("failed to encode job handle: %w", err)
	}
	return string(b), nil
}

// DecodeJobHandle восстанавливает дескриптор, сохраненный Encode.
func DecodeJobHandle(raw string) (JobHandle, error) {
	var h JobHandle
	if strings.TrimSpace(raw) == "" {
		return h, fmt.Errorf("%w: empty job handle", models.ErrFatalProvider)
	}
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return h, fmt.Errorf("%w: corrupt job handle: %v", models.ErrFatalProvider, err)
	}
	if h.Provider == "" {
		return h, fmt.Errorf("%w: job handle without provider", models.ErrFatalProvider)
	}
	return h, nil
}
