package melcloud

import (
	"encoding/json"

	"github.com/skra72/melcloudd/internal/device"
)

// API paths relative to the service base URL.
const (
	pathClientLogin              = "/Login/ClientLogin"
	pathListDevices              = "/User/ListDevices"
	pathUpdateApplicationOptions = "/User/UpdateApplicationOptions"
)

// DefaultBaseURL is the production MELCloud endpoint.
const DefaultBaseURL = "https://app.melcloud.com/Mitsubishi.Wifi.Client"

// appVersion is the client version string the service expects on login.
const appVersion = "1.31.0"

// loginRequest is the ClientLogin request body.
type loginRequest struct {
	Email            string `json:"Email"`
	Password         string `json:"Password"`
	Language         int    `json:"Language"`
	AppVersion       string `json:"AppVersion"`
	CaptchaChallenge string `json:"CaptchaChallenge"`
	CaptchaResponse  string `json:"CaptchaResponse"`
	Persist          bool   `json:"Persist"`
}

// loginResponse is the ClientLogin response envelope. ErrorId is null on
// success and a numeric code on credential failure, so it stays a
// pointer.
type loginResponse struct {
	ErrorId      *int            `json:"ErrorId"`
	ErrorMessage *string         `json:"ErrorMessage"`
	LoginData    json.RawMessage `json:"LoginData"`
}

// loginData is the subset of LoginData the session needs. The full raw
// payload is kept alongside for persistence.
type loginData struct {
	ContextKey string `json:"ContextKey"`
}

// Structure is the device layout inside one building. Devices hang off
// the structure directly, off floors, off areas, and off areas within
// floors; flatten walks all four.
type Structure struct {
	Devices []device.Descriptor `json:"Devices"`
	Areas   []Area              `json:"Areas"`
	Floors  []Floor             `json:"Floors"`
}

// Floor groups devices and areas within a building.
type Floor struct {
	Devices []device.Descriptor `json:"Devices"`
	Areas   []Area              `json:"Areas"`
}

// Area groups devices within a building or floor.
type Area struct {
	Devices []device.Descriptor `json:"Devices"`
}

// Building is one entry of the ListDevices response.
type Building struct {
	ID        int       `json:"ID"`
	Name      string    `json:"Name"`
	Structure Structure `json:"Structure"`
}

// LoginResult is what a successful Connect yields: the session token and
// the full account info payload for persistence. AccountInfo is the raw
// server payload; redact it before logging.
type LoginResult struct {
	ContextKey  string
	AccountInfo json.RawMessage
}
