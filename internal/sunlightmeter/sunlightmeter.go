package sunlightmeter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ztkent/lux-meter/internal/tools"
	"github.com/ztkent/lux-meter/tsl2561"
)

const (
	MAX_JOB_DURATION = 8 * time.Hour
	RECORD_INTERVAL  = 30 * time.Second
	RECENT_RESULTS   = 2880 // one day at the default interval
)

type SLMeter struct {
	TSL2561        *tsl2561.TSL2561
	LuxResultsChan chan LuxResults
	Settings       *tools.SettingsStore
	Log            logrus.FieldLogger
	Autogain       bool
	RecordInterval time.Duration
	MaxJobDuration time.Duration
	Pid            int

	// sensorMu serializes every access to the sensor. The driver has no locking of its own.
	sensorMu sync.Mutex

	jobMu  sync.Mutex
	jobID  string
	cancel context.CancelFunc

	recent     *recentResults
	recentOnce sync.Once
}

type Status struct {
	Connected       bool   `json:"connected"`
	Running         bool   `json:"running"`
	JobID           string `json:"jobID,omitempty"`
	Model           string `json:"model,omitempty"`
	Address         string `json:"address,omitempty"`
	Active          bool   `json:"active"`
	Gain            string `json:"gain,omitempty"`
	IntegrationTime string `json:"integrationTime,omitempty"`
}

type SettingsRequest struct {
	Gain            *int `json:"gain,omitempty"`
	IntegrationTime *int `json:"integrationTime,omitempty"`
}

func (m *SLMeter) results() *recentResults {
	m.recentOnce.Do(func() {
		if m.recent == nil {
			m.recent = newRecentResults(RECENT_RESULTS)
		}
	})
	return m.recent
}

// Start the sensor, and collect data in a loop
func (m *SLMeter) Start() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.TSL2561 == nil {
			ServeResponse(w, r, "The sensor is not connected", http.StatusBadRequest)
			return
		}

		m.jobMu.Lock()
		if m.cancel != nil {
			m.jobMu.Unlock()
			ServeResponse(w, r, "The sensor is already started", http.StatusBadRequest)
			return
		}
		maxDuration := m.MaxJobDuration
		if maxDuration <= 0 {
			maxDuration = MAX_JOB_DURATION
		}
		ctx, cancel := context.WithTimeout(context.Background(), maxDuration)
		jobID := uuid.New().String()
		m.jobID = jobID
		m.cancel = cancel
		m.jobMu.Unlock()

		m.Log.WithField("jobID", jobID).Info("It's going to be a bright day!")
		go m.runJob(ctx, jobID)
		ServeResponse(w, r, "Sunlight Reading Started: "+jobID, http.StatusOK)
	}
}

// Stop the sensor, and cancel the job context
func (m *SLMeter) Stop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.TSL2561 == nil {
			ServeResponse(w, r, "The sensor is not connected", http.StatusBadRequest)
			return
		}
		if !m.stopJob("") {
			ServeResponse(w, r, "The sensor is already stopped", http.StatusBadRequest)
			return
		}
		ServeResponse(w, r, "Sunlight Reading Stopped", http.StatusOK)
	}
}

// stopJob cancels the running job. With a job id it only stops that job.
func (m *SLMeter) stopJob(jobID string) bool {
	m.jobMu.Lock()
	defer m.jobMu.Unlock()
	if m.cancel == nil || (jobID != "" && jobID != m.jobID) {
		return false
	}
	m.cancel()
	m.cancel = nil
	m.jobID = ""
	return true
}

func (m *SLMeter) runningJob() (string, bool) {
	m.jobMu.Lock()
	defer m.jobMu.Unlock()
	return m.jobID, m.cancel != nil
}

func (m *SLMeter) runJob(ctx context.Context, jobID string) {
	log := m.Log.WithField("jobID", jobID)
	defer m.stopJob(jobID)

	interval := m.RecordInterval
	if interval <= 0 {
		interval = RECORD_INTERVAL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := m.sample(jobID, m.Autogain)
		if err != nil && !errors.Is(err, tsl2561.ErrSaturated) {
			log.WithError(err).Error("The sensor failed to get luminosity")
		} else {
			if err != nil {
				log.WithField("broadband", result.Broadband).Warn("The sensor is saturated, recording raw counts only")
			}
			select {
			case m.LuxResultsChan <- result:
			case <-ctx.Done():
			}
		}

		select {
		case <-ctx.Done():
			log.Info("Job Cancelled, stopping sensor")
			return
		case <-ticker.C:
		}
	}
}

// sample takes one reading. A saturated reading is returned along with ErrSaturated.
func (m *SLMeter) sample(jobID string, autogain bool) (LuxResults, error) {
	m.sensorMu.Lock()
	reading, err := m.TSL2561.Read(autogain, false)
	m.sensorMu.Unlock()

	if err != nil && !errors.Is(err, tsl2561.ErrSaturated) {
		return LuxResults{JobID: jobID}, err
	}
	return LuxResults{
		JobID:           jobID,
		Time:            time.Now().UTC(),
		Lux:             reading.Lux,
		Broadband:       reading.Broadband,
		InfraredCount:   reading.Infrared,
		Visible:         tsl2561.GetNormalizedOutput(tsl2561.TSL2561_VISIBLE, reading.Broadband, reading.Infrared),
		Infrared:        tsl2561.GetNormalizedOutput(tsl2561.TSL2561_INFRARED, reading.Broadband, reading.Infrared),
		FullSpectrum:    tsl2561.GetNormalizedOutput(tsl2561.TSL2561_FULLSPECTRUM, reading.Broadband, reading.Infrared),
		Gain:            reading.Gain,
		IntegrationTime: reading.IntegrationTime,
		GainChanged:     reading.GainChanged,
		Saturated:       err != nil,
	}, err
}

// Take a single reading outside of a job. It is kept with the job results.
func (m *SLMeter) Measure() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.TSL2561 == nil {
			ServeResponse(w, r, "The sensor is not connected", http.StatusBadRequest)
			return
		}
		autogain := m.Autogain
		if v := r.URL.Query().Get("autogain"); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				ServeResponse(w, r, "autogain must be true or false", http.StatusBadRequest)
				return
			}
			autogain = parsed
		}

		result, err := m.sample("", autogain)
		if err != nil && !errors.Is(err, tsl2561.ErrSaturated) {
			m.Log.WithError(err).Error("The sensor failed to get luminosity")
			ServeResponse(w, r, err.Error(), http.StatusInternalServerError)
			return
		}
		m.results().Add(result)
		if result.GainChanged {
			m.saveSettings()
		}
		serveJSON(w, http.StatusOK, result)
	}
}

// Serve the most recent reading
func (m *SLMeter) CurrentConditions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.TSL2561 == nil {
			ServeResponse(w, r, "The sensor is not connected", http.StatusBadRequest)
			return
		}
		latest, ok := m.results().Latest()
		if !ok {
			ServeResponse(w, r, "No readings yet", http.StatusNotFound)
			return
		}
		serveJSON(w, http.StatusOK, latest)
	}
}

// Serve or update the sensor configuration
func (m *SLMeter) ServeSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.TSL2561 == nil {
			ServeResponse(w, r, "The sensor is not connected", http.StatusBadRequest)
			return
		}
		if r.Method == http.MethodPost {
			var req SettingsRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				ServeResponse(w, r, "Invalid settings: "+err.Error(), http.StatusBadRequest)
				return
			}
			if err := m.applySettings(req); err != nil {
				status := http.StatusInternalServerError
				if errors.Is(err, tsl2561.ErrInvalidArgument) {
					status = http.StatusBadRequest
				}
				ServeResponse(w, r, err.Error(), status)
				return
			}
			m.saveSettings()
		}
		serveJSON(w, http.StatusOK, m.currentSettings())
	}
}

func (m *SLMeter) applySettings(req SettingsRequest) error {
	m.sensorMu.Lock()
	defer m.sensorMu.Unlock()
	if req.Gain != nil {
		if err := m.TSL2561.SetGain(*req.Gain); err != nil {
			return err
		}
	}
	if req.IntegrationTime != nil {
		if err := m.TSL2561.SetIntegrationTime(*req.IntegrationTime); err != nil {
			return err
		}
	}
	return nil
}

func (m *SLMeter) currentSettings() tools.Settings {
	m.sensorMu.Lock()
	defer m.sensorMu.Unlock()
	return tools.Settings{
		Model:           m.TSL2561.Model.String(),
		Gain:            m.TSL2561.Gain(),
		IntegrationTime: m.TSL2561.IntegrationTime(),
	}
}

func (m *SLMeter) saveSettings() {
	if m.Settings == nil {
		return
	}
	settings := m.currentSettings()
	if err := m.Settings.Save(settings); err != nil {
		m.Log.WithError(err).Error("Failed to save sensor settings")
		return
	}
	m.Log.WithFields(logrus.Fields{
		"gain":            settings.Gain,
		"integrationTime": settings.IntegrationTime,
	}).Debug("Saved sensor settings")
}

// RestoreSettings applies the saved configuration, if it was saved for the same sensor package.
func (m *SLMeter) RestoreSettings() error {
	if m.Settings == nil || m.TSL2561 == nil {
		return nil
	}
	settings, ok, err := m.Settings.Load()
	if err != nil {
		return err
	}
	if !ok || settings.Model != m.TSL2561.Model.String() {
		m.saveSettings()
		return nil
	}
	m.Log.WithFields(logrus.Fields{
		"gain":            settings.Gain,
		"integrationTime": settings.IntegrationTime,
	}).Info("Restoring sensor settings")
	return m.applySettings(SettingsRequest{Gain: &settings.Gain, IntegrationTime: &settings.IntegrationTime})
}

// Read from LuxResultsChan, keep the results for the dashboard
func (m *SLMeter) MonitorAndRecordResults(ctx context.Context) {
	m.Log.Info("Monitoring for new Sunlight Messages...")
	for {
		select {
		case <-ctx.Done():
			return
		case result := <-m.LuxResultsChan:
			m.Log.WithFields(logrus.Fields{
				"jobID":     result.JobID,
				"lux":       result.Lux,
				"broadband": result.Broadband,
				"infrared":  result.InfraredCount,
				"gain":      result.Gain,
			}).Info("Sunlight reading")
			m.results().Add(result)
			if result.GainChanged {
				m.saveSettings()
			}
		}
	}
}

// Populate the response with a JSON message
func ServeResponse(w http.ResponseWriter, r *http.Request, message string, status int) {
	serveJSON(w, status, map[string]string{"message": message})
}

func serveJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
