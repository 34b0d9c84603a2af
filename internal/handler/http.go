package handler

import (
	"errors"
	"fmt"
	"net/http"

	"simulation-server/internal/models"
	"simulation-server/internal/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// SimulationHandler обрабатывает HTTP запросы к прохождениям, ходам и видео.
type SimulationHandler struct {
	runs     service.RunService
	turns    service.TurnEngine
	videos   service.VideoService
	commands service.HologramCommandService
	logger   *zap.Logger
}

// NewSimulationHandler создает новый SimulationHandler.
func NewSimulationHandler(
	runs service.RunService,
	turns service.TurnEngine,
	videos service.VideoService,
	commands service.HologramCommandService,
	logger *zap.Logger,
) *SimulationHandler {
	return &SimulationHandler{
		runs:     runs,
		turns:    turns,
		videos:   videos,
		commands: commands,
		logger:   logger.Named("SimulationHandler"),
	}
}

// RegisterRoutes регистрирует маршруты API.
func (h *SimulationHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.health)

	api := e.Group("/api")

	simulations := api.Group("/simulations/:id")
	{
		simulations.GET("/holograms", h.listHolograms)
		simulations.POST("/holograms/command", h.classifyCommand)

		simulations.POST("/runs", h.startRun)
		simulations.GET("/runs", h.listRuns)
		simulations.GET("/runs/:runId", h.getRun)
		simulations.PATCH("/runs/:runId", h.updateRun)
		simulations.DELETE("/runs/:runId", h.deleteRun)
		simulations.POST("/runs/:runId/turns", h.submitTurn)
		simulations.POST("/runs/:runId/video", h.startVideo)
		simulations.GET("/runs/:runId/video", h.checkRunVideo)
	}

	videos := api.Group("/videos")
	{
		videos.GET("", h.listVideos)
		videos.GET("/:videoId", h.checkVideo)
		videos.GET("/:videoId/download", h.downloadVideo)
	}
}

// --- Вспомогательные функции --- //

func parseUUIDParam(c echo.Context, name string) (uuid.UUID, error) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s format", models.ErrInvalidInput, name)
	}
	return id, nil
}

func parseRunParams(c echo.Context) (simulationID, runID uuid.UUID, err error) {
	if simulationID, err = parseUUIDParam(c, "id"); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if runID, err = parseUUIDParam(c, "runId"); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return simulationID, runID, nil
}

// fail логирует неожиданные ошибки и отвечает через handleServiceError.
func (h *SimulationHandler) fail(c echo.Context, op string, err error, fields ...zap.Field) error {
	if errorStatus(err) >= http.StatusInternalServerError {
		h.logger.Error("Request failed", append(fields, zap.String("op", op), zap.Error(err))...)
	}
	return handleServiceError(c, err)
}

// --- Обработчики HTTP --- //

func (h *SimulationHandler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

func (h *SimulationHandler) startRun(c echo.Context) error {
	simulationID, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}
	var req startRunRequest
	if err := bindAndValidate(c, &req); err != nil {
		return handleServiceError(c, err)
	}
	hologramID := uuid.MustParse(req.HologramID)

	details, err := h.runs.StartRun(c.Request().Context(), simulationID, hologramID)
	if err != nil {
		return h.fail(c, "start run", err, zap.String("simulationID", simulationID.String()))
	}
	return c.JSON(http.StatusCreated, details)
}

func (h *SimulationHandler) listRuns(c echo.Context) error {
	simulationID, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}
	runs, err := h.runs.ListRuns(c.Request().Context(), simulationID)
	if err != nil {
		return h.fail(c, "list runs", err)
	}
	return c.JSON(http.StatusOK, listResponse[*models.Run]{Data: runs})
}

func (h *SimulationHandler) getRun(c echo.Context) error {
	simulationID, runID, err := parseRunParams(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	details, err := h.runs.GetRunDetails(c.Request().Context(), simulationID, runID)
	if err != nil {
		return h.fail(c, "get run", err, zap.String("runID", runID.String()))
	}
	return c.JSON(http.StatusOK, details)
}

func (h *SimulationHandler) updateRun(c echo.Context) error {
	simulationID, runID, err := parseRunParams(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	var req updateRunRequest
	if err := bindAndValidate(c, &req); err != nil {
		return handleServiceError(c, err)
	}
	input := service.UpdateRunInput{Title: req.Title}
	if req.Status != nil {
		status := models.RunStatus(*req.Status)
		input.Status = &status
	}

	run, err := h.runs.UpdateRun(c.Request().Context(), simulationID, runID, input)
	if err != nil {
		return h.fail(c, "update run", err, zap.String("runID", runID.String()))
	}
	return c.JSON(http.StatusOK, run)
}

func (h *SimulationHandler) deleteRun(c echo.Context) error {
	simulationID, runID, err := parseRunParams(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	if err := h.runs.DeleteRun(c.Request().Context(), simulationID, runID); err != nil {
		return h.fail(c, "delete run", err, zap.String("runID", runID.String()))
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SimulationHandler) submitTurn(c echo.Context) error {
	simulationID, runID, err := parseRunParams(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	var req submitTurnRequest
	if err := bindAndValidate(c, &req); err != nil {
		return handleServiceError(c, err)
	}

	turn, err := h.turns.SubmitTurn(c.Request().Context(), simulationID, runID, req.Prompt)
	if err != nil {
		return h.fail(c, "submit turn", err, zap.String("runID", runID.String()))
	}
	return c.JSON(http.StatusCreated, turn)
}

func (h *SimulationHandler) startVideo(c echo.Context) error {
	simulationID, runID, err := parseRunParams(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	video, err := h.videos.StartVideoJob(c.Request().Context(), simulationID, runID)
	if err != nil {
		return h.fail(c, "start video", err, zap.String("runID", runID.String()))
	}
	// Задание принято, статус продвигается опросом
	return c.JSON(http.StatusAccepted, video)
}

func (h *SimulationHandler) checkRunVideo(c echo.Context) error {
	simulationID, runID, err := parseRunParams(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	video, err := h.videos.CheckRunVideo(c.Request().Context(), simulationID, runID)
	if err != nil {
		return h.fail(c, "check run video", err, zap.String("runID", runID.String()))
	}
	return c.JSON(http.StatusOK, video)
}

func (h *SimulationHandler) listVideos(c echo.Context) error {
	videos, err := h.videos.ListCompletedVideos(c.Request().Context())
	if err != nil {
		return h.fail(c, "list videos", err)
	}
	return c.JSON(http.StatusOK, listResponse[*models.VideoSummary]{Data: videos})
}

func (h *SimulationHandler) checkVideo(c echo.Context) error {
	videoID, err := parseUUIDParam(c, "videoId")
	if err != nil {
		return handleServiceError(c, err)
	}
	video, err := h.videos.CheckVideoJob(c.Request().Context(), videoID)
	if err != nil {
		return h.fail(c, "check video", err, zap.String("videoID", videoID.String()))
	}
	return c.JSON(http.StatusOK, video)
}

func (h *SimulationHandler) downloadVideo(c echo.Context) error {
	videoID, err := parseUUIDParam(c, "videoId")
	if err != nil {
		return handleServiceError(c, err)
	}
	url, err := h.videos.GetDownloadURL(c.Request().Context(), videoID)
	if err != nil {
		return h.fail(c, "download video", err, zap.String("videoID", videoID.String()))
	}
	return c.Redirect(http.StatusFound, url)
}

func (h *SimulationHandler) listHolograms(c echo.Context) error {
	simulationID, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}
	holograms, err := h.runs.ListHolograms(c.Request().Context(), simulationID)
	if err != nil {
		return h.fail(c, "list holograms", err)
	}
	return c.JSON(http.StatusOK, listResponse[*models.Hologram]{Data: holograms})
}

func (h *SimulationHandler) classifyCommand(c echo.Context) error {
	simulationID, err := parseUUIDParam(c, "id")
	if err != nil {
		return handleServiceError(c, err)
	}
	var req hologramCommandRequest
	if err := bindAndValidate(c, &req); err != nil {
		return handleServiceError(c, err)
	}
	cmd, err := h.commands.ClassifyCommand(c.Request().Context(), simulationID, req.Text)
	if err != nil {
		return h.fail(c, "classify command", err)
	}
	return c.JSON(http.StatusOK, cmd)
}

// HTTPErrorHandler отвечает в формате APIError и на ошибки самого echo (404 маршрута, 405).
func HTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, APIError{Message: fmt.Sprint(he.Message)})
			return
		}
		logger.Error("Unhandled error", zap.Error(err))
		_ = handleServiceError(c, err)
	}
}
