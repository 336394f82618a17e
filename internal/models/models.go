// Homers - Media Stack Prometheus Exporter
// Copyright 2026 tcheronneau
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tcheronneau/homers

// Package models defines the canonical records produced by provider adapters
// and consumed by the metric encoder. These types are independent of any
// backend's wire schema; adapters are responsible for the mapping.
package models

import "fmt"

// StreamDecision describes how a media server delivers a session.
type StreamDecision string

const (
	DecisionDirectPlay   StreamDecision = "direct_play"
	DecisionDirectStream StreamDecision = "direct_stream"
	DecisionTranscode    StreamDecision = "transcode"
	DecisionNone         StreamDecision = "none"
)

// BandwidthLocation classifies where a session's bandwidth is consumed.
type BandwidthLocation string

const (
	BandwidthLAN     BandwidthLocation = "lan"
	BandwidthWAN     BandwidthLocation = "wan"
	BandwidthUnknown BandwidthLocation = "unknown"
)

// Bandwidth is the per-session bandwidth sample reported by a media server.
type Bandwidth struct {
	Kbps     int64
	Location BandwidthLocation
}

// Location is a resolved geolocation. Coordinates are carried as strings so
// they survive unchanged into metric labels. On resolution failure the
// sentinel values "Unknown" and "0.0" are used.
type Location struct {
	City      string
	Country   string
	IPAddress string
	Latitude  string
	Longitude string
}

// UnknownLocation returns the sentinel Location for the given IP.
func UnknownLocation(ip string) Location {
	return Location{
		City:      "Unknown",
		Country:   "Unknown",
		IPAddress: ip,
		Latitude:  "0.0",
		Longitude: "0.0",
	}
}

// User is a media-server account known to an instance.
// Equality is by name.
type User struct {
	Name string
}

// Session is a playback session observed at scrape time.
type Session struct {
	Title         string
	User          string
	State         string
	MediaType     string
	Progress      float64
	Quality       string
	SeasonNumber  string
	EpisodeNumber string

	Decision StreamDecision
	Platform string

	Address       string
	PublicAddress string
	Local         bool
	Secure        bool
	Relayed       bool

	Location  Location
	Bandwidth Bandwidth
}

// LibraryCount is a per-library item count. For show libraries ChildCount is
// seasons and GrandChildCount is episodes.
type LibraryCount struct {
	Name            string
	MediaType       string
	Count           int64
	ChildCount      int64
	GrandChildCount int64
}

// SonarrEpisode is a calendar entry normalised from Sonarr.
type SonarrEpisode struct {
	SeasonNumber  int64
	EpisodeNumber int64
	Title         string
	Serie         string
	AirDate       string
	HasFile       bool
}

// SXE formats the episode code, e.g. "S01E02".
func (e SonarrEpisode) SXE() string {
	return fmt.Sprintf("S%02dE%02d", e.SeasonNumber, e.EpisodeNumber)
}

// RadarrMovie is a movie record normalised from Radarr.
// MissingAvailable is always recomputed from HasFile and IsAvailable.
type RadarrMovie struct {
	Title            string
	HasFile          bool
	Monitored        bool
	IsAvailable      bool
	MissingAvailable bool
}

// NewRadarrMovie builds a movie record with the derived field applied.
func NewRadarrMovie(title string, hasFile, monitored, isAvailable bool) RadarrMovie {
	return RadarrMovie{
		Title:            title,
		HasFile:          hasFile,
		Monitored:        monitored,
		IsAvailable:      isAvailable,
		MissingAvailable: !hasFile && isAvailable,
	}
}

// LidarrArtist is an artist record normalised from Lidarr.
type LidarrArtist struct {
	Name           string
	Monitored      bool
	TrackCount     int64
	TrackFileCount int64
}

// ReadarrAuthor is an author record normalised from Readarr.
type ReadarrAuthor struct {
	Name          string
	Monitored     bool
	BookCount     int64
	BookFileCount int64
}

// Overseerr request status codes. The numeric values are contractual; they
// surface directly as gauge values.
const (
	RequestStatusPending  int64 = 1
	RequestStatusApproved int64 = 2
	RequestStatusDeclined int64 = 3
)

// Overseerr media status codes, likewise contractual.
const (
	MediaStatusUnknown            int64 = 1
	MediaStatusPending            int64 = 2
	MediaStatusProcessing         int64 = 3
	MediaStatusPartiallyAvailable int64 = 4
	MediaStatusAvailable          int64 = 5
)

// RequestStatusString maps a request status code to its display string.
func RequestStatusString(code int64) string {
	switch code {
	case RequestStatusPending:
		return "pending_approval"
	case RequestStatusApproved:
		return "approved"
	case RequestStatusDeclined:
		return "declined"
	default:
		return "unknown"
	}
}

// OverseerrRequest is a media request normalised from Overseerr or Jellyseerr.
type OverseerrRequest struct {
	MediaType     string
	MediaID       int64
	RequestStatus int64
	MediaStatus   int64
	RequestedBy   string
	MediaTitle    string
	RequestedAt   string
}

// TautulliSession is an activity entry carried through from Tautulli.
type TautulliSession struct {
	User           string
	Title          string
	State          string
	MediaType      string
	Progress       float64
	Quality        string
	QualityProfile string
	VideoStream    string
	SeasonNumber   string
	EpisodeNumber  string
	Address        string
	Local          bool
	Secure         bool
	Relayed        bool
	Location       Location
}

// TautulliLibrary is a library section carried through from Tautulli.
type TautulliLibrary struct {
	SectionName string
	SectionType string
	Count       int64
	ParentCount int64
	ChildCount  int64
	Active      bool
}

// TautulliHistoryEntry is a watch-history record from Tautulli.
// Date is Unix seconds.
type TautulliHistoryEntry struct {
	Date          int64
	User          string
	FriendlyName  string
	MediaType     string
	WatchedStatus float64
}

// UserLabel returns the label value for per-user history metrics: the
// friendly name when present, the account name otherwise.
func (e TautulliHistoryEntry) UserLabel() string {
	if e.FriendlyName != "" {
		return e.FriendlyName
	}
	return e.User
}
