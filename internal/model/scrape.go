package model

import "time"

type LineKind int

const (
	Heading LineKind = iota
	Item
	SubItem
)

func (k LineKind) String() string {
	return [...]string{"heading", "item", "subitem"}[k]
}

type FailureReason int

const (
	AccessDenied FailureReason = iota
	Timeout
	EmptyContent
	InternalError
)

func (r FailureReason) String() string {
	return [...]string{"access denied", "timeout", "empty content", "internal error"}[r]
}

type ScrapeRequest struct {
	URL     string
	Timeout time.Duration
}

type ContentLine struct {
	Kind LineKind `json:"kind"`
	Text string   `json:"text"`
}

type Success struct {
	Title string
	Lines []ContentLine
}

type Failure struct {
	Reason  FailureReason
	Message string
}

// ScrapeResult holds exactly one of Success or Failure.
type ScrapeResult struct {
	Success *Success
	Failure *Failure
}

func Succeeded(title string, lines []ContentLine) ScrapeResult {
	return ScrapeResult{Success: &Success{Title: title, Lines: lines}}
}

func Failed(reason FailureReason, message string) ScrapeResult {
	return ScrapeResult{Failure: &Failure{Reason: reason, Message: message}}
}

func (r ScrapeResult) OK() bool {
	return r.Success != nil
}

// TitleClassification keeps entities derived from a page title. Empty means unresolved.
type TitleClassification struct {
	CompanyName    string
	TeamMemberName string
}

func (c TitleClassification) Empty() bool {
	return c.CompanyName == "" && c.TeamMemberName == ""
}

type FormattedMessage struct {
	Text      string
	Truncated bool
}
