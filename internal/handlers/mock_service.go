package handlers

import (
	"context"
	"time"

	"github.com/rockit-astro/qhy-camd/internal/models"
	"github.com/rockit-astro/qhy-camd/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockCamera struct {
	// Result returned from every command method.
	result models.CommandStatus

	status    models.Status
	statusErr error

	lastTemperature *float64
	lastStream      bool
	lastGain        int
	lastOffset      int
	lastExposure    float64
	lastCount       int
	lastQuiet       bool

	startCalls    int
	stopCalls     int
	shutdownCalls int
}

func (m *mockCamera) SetTemperature(setpoint *float64, quiet bool) models.CommandStatus {
	m.lastTemperature = setpoint
	m.lastQuiet = quiet
	return m.result
}
func (m *mockCamera) SetStreaming(stream bool, quiet bool) models.CommandStatus {
	m.lastStream = stream
	m.lastQuiet = quiet
	return m.result
}
func (m *mockCamera) SetGain(gain int, quiet bool) models.CommandStatus {
	m.lastGain = gain
	m.lastQuiet = quiet
	return m.result
}
func (m *mockCamera) SetOffset(offset int, quiet bool) models.CommandStatus {
	m.lastOffset = offset
	m.lastQuiet = quiet
	return m.result
}
func (m *mockCamera) SetExposure(seconds float64, quiet bool) models.CommandStatus {
	m.lastExposure = seconds
	m.lastQuiet = quiet
	return m.result
}
func (m *mockCamera) StartSequence(count int, quiet bool) models.CommandStatus {
	m.startCalls++
	m.lastCount = count
	m.lastQuiet = quiet
	return m.result
}
func (m *mockCamera) StopSequence(quiet bool) models.CommandStatus {
	m.stopCalls++
	m.lastQuiet = quiet
	return m.result
}
func (m *mockCamera) Status() (models.Status, error) {
	return m.status, m.statusErr
}
func (m *mockCamera) Shutdown() models.CommandStatus {
	m.shutdownCalls++
	return m.result
}

type mockEventLog struct {
	resp     []models.CameraEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.CameraEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
