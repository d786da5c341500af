package model

import (
	"strings"
	"time"
)

// --- Printer Structures ---

// Transport is how a printer is attached to the host.
type Transport int

const (
	TransportUnknown Transport = iota
	TransportUSB
	TransportSerial
	TransportParallel
	TransportNetwork
)

func (t Transport) String() string {
	switch t {
	case TransportUSB:
		return "usb"
	case TransportSerial:
		return "serial"
	case TransportParallel:
		return "parallel"
	case TransportNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// IsLocal reports whether the transport is attached directly to the host.
func (t Transport) IsLocal() bool {
	return t == TransportUSB || t == TransportSerial || t == TransportParallel
}

var networkSchemes = []string{"ipp://", "ipps://", "http://", "https://", "socket://", "lpd://", "dnssd://", "smb://", "bjnp://"}

// TransportFromURI classifies a CUPS device URI.
func TransportFromURI(uri string) Transport {
	u := strings.ToLower(strings.TrimSpace(uri))
	switch {
	case strings.HasPrefix(u, "usb:"):
		return TransportUSB
	case strings.HasPrefix(u, "serial:"):
		return TransportSerial
	case strings.HasPrefix(u, "parallel:"):
		return TransportParallel
	}
	for _, scheme := range networkSchemes {
		if strings.HasPrefix(u, scheme) {
			return TransportNetwork
		}
	}
	return TransportUnknown
}

// PrinterState mirrors the IPP printer-state enum.
type PrinterState int

const (
	PrinterIdle       PrinterState = 3
	PrinterProcessing PrinterState = 4
	PrinterStopped    PrinterState = 5
)

func (s PrinterState) String() string {
	switch s {
	case PrinterIdle:
		return "idle"
	case PrinterProcessing:
		return "processing"
	case PrinterStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PrinterHandle identifies the one printer the booth prints to.
type PrinterHandle struct {
	Name      string    `json:"name"`
	Transport Transport `json:"transport"`
	Accepting bool      `json:"accepting"`
}

// PrinterInfo is a single entry of a printer enumeration.
type PrinterInfo struct {
	Name         string       `json:"name"`
	DeviceURI    string       `json:"deviceUri"`
	Transport    Transport    `json:"transport"`
	State        PrinterState `json:"state"`
	StateMessage string       `json:"stateMessage"`
	Accepting    bool         `json:"accepting"`
}

func (p PrinterInfo) Handle() PrinterHandle {
	return PrinterHandle{Name: p.Name, Transport: p.Transport, Accepting: p.Accepting}
}

func (p PrinterInfo) Status() PrinterStatus {
	return PrinterStatus{Name: p.Name, State: p.State, StateMessage: p.StateMessage, Accepting: p.Accepting}
}

type PrinterStatus struct {
	Name         string       `json:"name"`
	State        PrinterState `json:"state"`
	StateMessage string       `json:"stateMessage"`
	Accepting    bool         `json:"accepting"`
}

// --- Job Structures ---

type JobID int

// JobState mirrors the IPP job-state enum. Zero means the backend did not
// report a state.
type JobState int

const (
	JobUnknown    JobState = 0
	JobPending    JobState = 3
	JobHeld       JobState = 4
	JobProcessing JobState = 5
	JobStopped    JobState = 6
	JobCanceled   JobState = 7
	JobAborted    JobState = 8
	JobCompleted  JobState = 9
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobHeld:
		return "pending-held"
	case JobProcessing:
		return "processing"
	case JobStopped:
		return "processing-stopped"
	case JobCanceled:
		return "canceled"
	case JobAborted:
		return "aborted"
	case JobCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Failed reports whether the state is one that will not complete on its
// own. Held is included; pollers give it one release attempt first.
func (s JobState) Failed() bool {
	switch s {
	case JobCanceled, JobAborted, JobStopped, JobHeld:
		return true
	}
	return false
}

type JobInfo struct {
	ID      JobID    `json:"id"`
	State   JobState `json:"state"`
	Message string   `json:"message"`
}

type PrintJob struct {
	ID        JobID     `json:"id"`
	FilePath  string    `json:"filePath"`
	State     JobState  `json:"state"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"createdAt"`
}
