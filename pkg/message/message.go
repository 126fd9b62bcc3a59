// Package message implements the core's shared wire-message types
// (spec §4.8, component C8, and §6.1). Every message carries a
// globally unique type identifier and a version string, and exposes
// Encode/Decode as inverse operations over JSON text produced by
// encoding/json. No binary encoding is produced or accepted.
package message

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/uofuseismo/urts-sub000/pkg/urtserrors"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/packet"
)

// CurrentVersion is stamped on every message this core produces.
const CurrentVersion = "1.0.0"

// Message type identifiers, exactly as they appear on the wire.
const (
	TypeDataPacket        = "DataPacket"
	TypeDataRequest       = "DataRequest"
	TypeDataResponse      = "DataResponse"
	TypeBulkDataRequest   = "BulkDataRequest"
	TypeBulkDataResponse  = "BulkDataResponse"
	TypeSensorRequest     = "SensorRequest"
	TypeSensorResponse    = "SensorResponse"
	TypeFailure           = "Failure"
)

// ReturnCode is the outcome a response carries back to the client.
type ReturnCode int

const (
	Success ReturnCode = iota
	InvalidMessage
	NoSensor
	AlgorithmicFailure
)

// QueryEndNow is the sentinel QueryEndTime meaning "now", per §6.1.
const QueryEndNow int64 = math.MaxInt64

// Message is the shared wire-message interface every request,
// response, and internal packet implements (spec §9's "small trait").
type Message interface {
	MessageType() string
	MessageVersion() string
	Encode() ([]byte, error)
	Decode([]byte) error
	Pretty() ([]byte, error)
}

func encodeTyped(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func prettyTyped(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

func decodeTyped(data []byte, wantType string, v interface{}) error {
	var probe struct {
		MessageType string `json:"MessageType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return fmt.Errorf("%w: %v", urtserrors.InvalidMessage, err)
	}
	if probe.MessageType != wantType {
		return fmt.Errorf("%w: declared type %q does not match target type %q", urtserrors.InvalidMessage, probe.MessageType, wantType)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", urtserrors.InvalidMessage, err)
	}
	return nil
}

// --- DataPacket ---

// DataPacket is the wire representation of one waveform packet.
type DataPacket struct {
	Type         string    `json:"MessageType"`
	Version      string    `json:"MessageVersion"`
	Network      string    `json:"Network"`
	Station      string    `json:"Station"`
	Channel      string    `json:"Channel"`
	LocationCode string    `json:"LocationCode"`
	StartTime    int64     `json:"StartTime"`
	SamplingRate float64   `json:"SamplingRate"`
	EndTime      *int64    `json:"EndTime"`
	Data         []float64 `json:"Data"`
}

// NewDataPacket builds the wire form of p.
func NewDataPacket(p packet.Packet) DataPacket {
	end := p.EndTime()
	data := p.Data()
	var dataField []float64
	if len(data) > 0 {
		dataField = data
	}
	return DataPacket{
		Type:         TypeDataPacket,
		Version:      CurrentVersion,
		Network:      p.Name().Network,
		Station:      p.Name().Station,
		Channel:      p.Name().Channel,
		LocationCode: p.Name().LocationCode,
		StartTime:    p.StartTime(),
		SamplingRate: p.SamplingRate(),
		EndTime:      &end,
		Data:         dataField,
	}
}

// ToPacket converts the wire form back into a core packet.Packet.
func (m DataPacket) ToPacket() (packet.Packet, error) {
	name := packet.Name{Network: m.Network, Station: m.Station, Channel: m.Channel, LocationCode: m.LocationCode}
	return packet.New(name, m.SamplingRate, m.StartTime, m.Data)
}

func (m DataPacket) MessageType() string    { return TypeDataPacket }
func (m DataPacket) MessageVersion() string { return CurrentVersion }

func (m *DataPacket) Encode() ([]byte, error) {
	if m.Network == "" || m.Station == "" || m.Channel == "" || m.LocationCode == "" {
		return nil, fmt.Errorf("%w: channel name component is unset", urtserrors.InvalidArgument)
	}
	m.Type = TypeDataPacket
	m.Version = CurrentVersion
	return encodeTyped(m)
}

func (m *DataPacket) Decode(data []byte) error {
	return decodeTyped(data, TypeDataPacket, m)
}

func (m *DataPacket) Pretty() ([]byte, error) {
	return prettyTyped(m)
}

// --- DataRequest ---

// DataRequest is a single-channel window query.
type DataRequest struct {
	Type           string `json:"MessageType"`
	Version        string `json:"MessageVersion"`
	Network        string `json:"Network"`
	Station        string `json:"Station"`
	Channel        string `json:"Channel"`
	LocationCode   string `json:"LocationCode"`
	QueryStartTime int64  `json:"QueryStartTime"`
	QueryEndTime   int64  `json:"QueryEndTime"`
	Identifier     uint64 `json:"Identifier"`
}

func (m DataRequest) Name() packet.Name {
	return packet.Name{Network: m.Network, Station: m.Station, Channel: m.Channel, LocationCode: m.LocationCode}
}

func (m DataRequest) MessageType() string    { return TypeDataRequest }
func (m DataRequest) MessageVersion() string { return CurrentVersion }

func (m *DataRequest) Encode() ([]byte, error) {
	if m.Network == "" || m.Station == "" || m.Channel == "" || m.LocationCode == "" {
		return nil, fmt.Errorf("%w: channel name component is unset", urtserrors.InvalidArgument)
	}
	m.Type = TypeDataRequest
	m.Version = CurrentVersion
	return encodeTyped(m)
}

func (m *DataRequest) Decode(data []byte) error { return decodeTyped(data, TypeDataRequest, m) }
func (m *DataRequest) Pretty() ([]byte, error)  { return prettyTyped(m) }

// --- DataResponse ---

// packetSummary is the per-packet payload nested inside a DataResponse.
type packetSummary struct {
	StartTime    int64     `json:"StartTime"`
	SamplingRate float64   `json:"SamplingRate"`
	Data         []float64 `json:"Data"`
}

// DataResponse answers a DataRequest.
type DataResponse struct {
	Type            string          `json:"MessageType"`
	Version         string          `json:"MessageVersion"`
	Network         string          `json:"Network"`
	Station         string          `json:"Station"`
	Channel         string          `json:"Channel"`
	LocationCode    string          `json:"LocationCode"`
	NumberOfPackets int             `json:"NumberOfPackets"`
	Packets         []packetSummary `json:"Packets"`
	Identifier      uint64          `json:"Identifier"`
	ReturnCode      ReturnCode      `json:"ReturnCode"`
}

// NewDataResponse builds a DataResponse from core packets.
func NewDataResponse(name packet.Name, packets []packet.Packet, identifier uint64, code ReturnCode) DataResponse {
	summaries := make([]packetSummary, len(packets))
	for i, p := range packets {
		summaries[i] = packetSummary{StartTime: p.StartTime(), SamplingRate: p.SamplingRate(), Data: p.Data()}
	}
	return DataResponse{
		Type:            TypeDataResponse,
		Version:         CurrentVersion,
		Network:         name.Network,
		Station:         name.Station,
		Channel:         name.Channel,
		LocationCode:    name.LocationCode,
		NumberOfPackets: len(summaries),
		Packets:         summaries,
		Identifier:      identifier,
		ReturnCode:      code,
	}
}

// ToPackets converts the response's packet summaries back to core
// packets, using the response's identity fields.
func (m DataResponse) ToPackets() ([]packet.Packet, error) {
	name := packet.Name{Network: m.Network, Station: m.Station, Channel: m.Channel, LocationCode: m.LocationCode}
	out := make([]packet.Packet, 0, len(m.Packets))
	for _, ps := range m.Packets {
		p, err := packet.New(name, ps.SamplingRate, ps.StartTime, ps.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (m DataResponse) MessageType() string    { return TypeDataResponse }
func (m DataResponse) MessageVersion() string { return CurrentVersion }

func (m *DataResponse) Encode() ([]byte, error) {
	m.Type = TypeDataResponse
	m.Version = CurrentVersion
	m.NumberOfPackets = len(m.Packets)
	return encodeTyped(m)
}

func (m *DataResponse) Decode(data []byte) error { return decodeTyped(data, TypeDataResponse, m) }
func (m *DataResponse) Pretty() ([]byte, error)  { return prettyTyped(m) }

// --- BulkDataRequest / BulkDataResponse ---

// BulkDataRequest wraps an ordered list of single DataRequests.
type BulkDataRequest struct {
	Type     string        `json:"MessageType"`
	Version  string        `json:"MessageVersion"`
	Requests []DataRequest `json:"Requests"`
}

func (m BulkDataRequest) MessageType() string    { return TypeBulkDataRequest }
func (m BulkDataRequest) MessageVersion() string { return CurrentVersion }

func (m *BulkDataRequest) Encode() ([]byte, error) {
	m.Type = TypeBulkDataRequest
	m.Version = CurrentVersion
	return encodeTyped(m)
}

func (m *BulkDataRequest) Decode(data []byte) error {
	return decodeTyped(data, TypeBulkDataRequest, m)
}
func (m *BulkDataRequest) Pretty() ([]byte, error) { return prettyTyped(m) }

// BulkDataResponse wraps an ordered list of single DataResponses.
type BulkDataResponse struct {
	Type      string         `json:"MessageType"`
	Version   string         `json:"MessageVersion"`
	Responses []DataResponse `json:"Responses"`
}

func (m BulkDataResponse) MessageType() string    { return TypeBulkDataResponse }
func (m BulkDataResponse) MessageVersion() string { return CurrentVersion }

func (m *BulkDataResponse) Encode() ([]byte, error) {
	m.Type = TypeBulkDataResponse
	m.Version = CurrentVersion
	return encodeTyped(m)
}

func (m *BulkDataResponse) Decode(data []byte) error {
	return decodeTyped(data, TypeBulkDataResponse, m)
}
func (m *BulkDataResponse) Pretty() ([]byte, error) { return prettyTyped(m) }

// --- SensorRequest / SensorResponse ---

// SensorRequest enumerates all channel names currently in the cache.
type SensorRequest struct {
	Type       string `json:"MessageType"`
	Version    string `json:"MessageVersion"`
	Identifier uint64 `json:"Identifier"`
}

func (m SensorRequest) MessageType() string    { return TypeSensorRequest }
func (m SensorRequest) MessageVersion() string { return CurrentVersion }

func (m *SensorRequest) Encode() ([]byte, error) {
	m.Type = TypeSensorRequest
	m.Version = CurrentVersion
	return encodeTyped(m)
}
func (m *SensorRequest) Decode(data []byte) error { return decodeTyped(data, TypeSensorRequest, m) }
func (m *SensorRequest) Pretty() ([]byte, error)  { return prettyTyped(m) }

// SensorResponse answers a SensorRequest.
type SensorResponse struct {
	Type       string     `json:"MessageType"`
	Version    string     `json:"MessageVersion"`
	Names      []string   `json:"Names"`
	Identifier uint64     `json:"Identifier"`
	ReturnCode ReturnCode `json:"ReturnCode"`
}

func NewSensorResponse(names []packet.Name, identifier uint64, code ReturnCode) SensorResponse {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = n.String()
	}
	return SensorResponse{Type: TypeSensorResponse, Version: CurrentVersion, Names: out, Identifier: identifier, ReturnCode: code}
}

func (m SensorResponse) MessageType() string    { return TypeSensorResponse }
func (m SensorResponse) MessageVersion() string { return CurrentVersion }

func (m *SensorResponse) Encode() ([]byte, error) {
	m.Type = TypeSensorResponse
	m.Version = CurrentVersion
	return encodeTyped(m)
}
func (m *SensorResponse) Decode(data []byte) error { return decodeTyped(data, TypeSensorResponse, m) }
func (m *SensorResponse) Pretty() ([]byte, error)  { return prettyTyped(m) }

// --- Failure ---

// Failure is the generic reply used when the request's message type is
// unrecognized; the router/dealer socket's one-request-one-reply
// invariant still requires a response (spec §4.6).
type Failure struct {
	Type       string     `json:"MessageType"`
	Version    string     `json:"MessageVersion"`
	Diagnostic string     `json:"Diagnostic"`
	Identifier uint64     `json:"Identifier"`
	ReturnCode ReturnCode `json:"ReturnCode"`
}

func NewFailure(diagnostic string, identifier uint64, code ReturnCode) Failure {
	return Failure{Type: TypeFailure, Version: CurrentVersion, Diagnostic: diagnostic, Identifier: identifier, ReturnCode: code}
}

func (m Failure) MessageType() string    { return TypeFailure }
func (m Failure) MessageVersion() string { return CurrentVersion }

func (m *Failure) Encode() ([]byte, error) {
	m.Type = TypeFailure
	m.Version = CurrentVersion
	return encodeTyped(m)
}
func (m *Failure) Decode(data []byte) error { return decodeTyped(data, TypeFailure, m) }
func (m *Failure) Pretty() ([]byte, error)  { return prettyTyped(m) }

// PeekType reads only the MessageType field of an encoded message,
// without validating the rest of the payload. Used by the cache
// service to dispatch before fully decoding.
func PeekType(data []byte) (string, error) {
	var probe struct {
		MessageType string `json:"MessageType"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", fmt.Errorf("%w: %v", urtserrors.InvalidMessage, err)
	}
	return probe.MessageType, nil
}
