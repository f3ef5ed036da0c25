package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event            string        `json:"event,omitempty"`
	Reason           string        `json:"reason,omitempty"`
	State            string        `json:"state"`
	Running          bool          `json:"running"`
	K1               bool          `json:"k1"`
	K2               bool          `json:"k2"`
	Attempts         int           `json:"attempts"`
	UpdateInProgress bool          `json:"update_in_progress"`
	UptimeSeconds    int64         `json:"uptime_seconds"`
	StartTime        string        `json:"start_time"`
	Timestamp        string        `json:"timestamp"`
	MQTT             MQTTStatus    `json:"mqtt"`
	Counts           CountsJSON    `json:"counts"`
	Settings         SettingsJSON  `json:"settings"`
	Network          *NetworkJSON  `json:"network,omitempty"`
	Config           ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of the controller counters.
type CountsJSON struct {
	Starts    int `json:"starts"`
	Stops     int `json:"stops"`
	Retries   int `json:"retries"`
	Failures  int `json:"failures"`
	Confirmed int `json:"confirmed"`
}

// SettingsJSON is the JSON representation of the persisted tunables.
type SettingsJSON struct {
	PowerUpMs   int64 `json:"power_up_ms"`
	PowerDownMs int64 `json:"power_down_ms"`
	RetryLimit  int   `json:"retry_limit"`
	AllowStart  bool  `json:"allow_start"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	ControlMs   int64  `json:"control_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	VerifyMs    int64  `json:"verify_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
	Settings    string `json:"settings_file"`
}

// FormatStatusEvent renders a full status snapshot as the payload of a
// system lifecycle event (STARTUP, SHUTDOWN, HEARTBEAT).
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	sj := toJSON(snap)
	sj.Status.Event = event
	sj.Status.Reason = reason
	data, _ := json.Marshal(sj)
	return data
}

// FormatJSON renders a status snapshot for the HTTP endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(toJSON(snap), "", "  ")
	return data
}

func toJSON(snap Snapshot) StatusJSON {
	sj := StatusJSON{
		Status: StatusInner{
			State:            string(snap.State),
			Running:          snap.Running,
			K1:               snap.K1,
			K2:               snap.K2,
			Attempts:         snap.Attempts,
			UpdateInProgress: snap.UpdateInProgress,
			UptimeSeconds:    int64(snap.Uptime().Truncate(time.Second).Seconds()),
			StartTime:        snap.StartTime.UTC().Format(time.RFC3339),
			Timestamp:        snap.Now.UTC().Format(time.RFC3339),
			MQTT:             MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
			Counts: CountsJSON{
				Starts:    snap.Counts.Starts,
				Stops:     snap.Counts.Stops,
				Retries:   snap.Counts.Retries,
				Failures:  snap.Counts.Failures,
				Confirmed: snap.Counts.Confirmed,
			},
			Settings: SettingsJSON{
				PowerUpMs:   snap.Tunables.PowerUpMs,
				PowerDownMs: snap.Tunables.PowerDownMs,
				RetryLimit:  snap.Tunables.RetryLimit,
				AllowStart:  snap.Tunables.AllowStart,
			},
			Config: ConfigJSON{
				PollMs:      snap.Config.PollMs,
				ControlMs:   snap.Config.ControlMs,
				DebounceMs:  snap.Config.DebounceMs,
				VerifyMs:    snap.Config.VerifyMs,
				HeartbeatMs: snap.Config.HeartbeatMs,
				Broker:      snap.Config.Broker,
				HTTPAddr:    snap.Config.HTTPAddr,
				Settings:    snap.Config.Settings,
			},
		},
	}

	if snap.Network != nil {
		sj.Status.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}

	return sj
}
