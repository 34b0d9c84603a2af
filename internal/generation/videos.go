package generation

import (
	"context"
	"fmt"
	"time"

	"simulation-server/internal/models"

	"go.uber.org/zap"
)

// VideoJobs реализует VideoGenerator: запуск у основного провайдера с fallback
// и маршрутизация опроса/скачивания по провайдеру из дескриптора.
type VideoJobs struct {
	primary   VideoRenderer
	fallback  VideoRenderer // nil, если fallback отключен
	renderers map[string]VideoRenderer
	logger    *zap.Logger
}

var _ VideoGenerator = (*VideoJobs)(nil)

// NewVideoJobs creates the dispatcher. fallback may be nil.
func NewVideoJobs(primary, fallback VideoRenderer, logger *zap.Logger) *VideoJobs {
	renderers := map[string]VideoRenderer{primary.Name(): primary}
	if fallback != nil {
		renderers[fallback.Name()] = fallback
	}
	return &VideoJobs{
		primary:   primary,
		fallback:  fallback,
		renderers: renderers,
		logger:    logger.Named("VideoJobs"),
	}
}

// GenerateVideoJob starts a render job. Не ретраится: повтор обеспечивает внешний опрос.
func (v *VideoJobs) GenerateVideoJob(ctx context.Context, prompt string) (JobHandle, error) {
	start := time.Now()
	handle, err := v.primary.StartVideo(ctx, prompt)
	MetricsRecordCall(CapabilityVideo, v.primary.Name(), err, time.Since(start))
	if err == nil {
		return handle, nil
	}
	if v.fallback == nil || ctx.Err() != nil {
		return JobHandle{}, err
	}
	v.logger.Warn("Video backend failed, falling back",
		zap.String("capability", CapabilityVideo),
		zap.String("primary", v.primary.Name()),
		zap.String("fallback", v.fallback.Name()),
		zap.Error(err),
	)
	MetricsRecordFallback(CapabilityVideo)
	start = time.Now()
	handle, err = v.fallback.StartVideo(ctx, prompt)
	MetricsRecordCall(CapabilityVideo, v.fallback.Name(), err, time.Since(start))
	return handle, err
}

// PollVideoJob checks the job once. Завершение без ассета означает неудачный рендер.
func (v *VideoJobs) PollVideoJob(ctx context.Context, handle JobHandle) (*PollResult, error) {
	r, err := v.rendererFor(handle)
	if err != nil {
		return nil, err
	}
	refreshed, err := r.PollVideo(ctx, handle)
	if err != nil {
		return nil, err
	}
	if !refreshed.IsDone() {
		return &PollResult{Terminal: false, Status: models.VideoStatusGenerating, Handle: refreshed}, nil
	}
	if ref := refreshed.ResultAssetRef(); ref != "" {
		return &PollResult{Terminal: true, Status: models.VideoStatusCompleted, AssetRef: ref, Handle: refreshed}, nil
	}
	return &PollResult{Terminal: true, Status: models.VideoStatusFailed, Handle: refreshed}, nil
}

// FetchAsset downloads the finished video bytes from the provider that rendered them.
func (v *VideoJobs) FetchAsset(ctx context.Context, handle JobHandle) ([]byte, error) {
	r, err := v.rendererFor(handle)
	if err != nil {
		return nil, err
	}
	return r.FetchVideo(ctx, handle)
}

func (v *VideoJobs) rendererFor(handle JobHandle) (VideoRenderer, error) {
	r, ok := v.renderers[handle.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: no video renderer for provider %q", models.ErrFatalProvider, handle.Provider)
	}
	return r, nil
}
