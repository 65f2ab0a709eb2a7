package adminui

import (
	"strconv"
	"strings"
	"time"

	"dtadmin/internal/adminapi"
)

const stamp = "2006-01-02 15:04"

func when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(stamp)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func fmtID(n int64) string { return strconv.FormatInt(n, 10) }

var productColumns = []column[adminapi.Product]{
	{"ID", 6, func(p adminapi.Product) string { return fmtID(p.ID) }},
	{"Title", 28, func(p adminapi.Product) string { return p.Title }},
	{"Price", 10, func(p adminapi.Product) string { return p.Price.String() }},
	{"Owner", 14, func(p adminapi.Product) string { return p.Owner }},
	{"Status", 18, productStatus},
	{"Verified", 8, func(p adminapi.Product) string { return yesNo(p.IsVerified) }},
	{"Spotlight", 9, func(p adminapi.Product) string { return yesNo(p.Spotlighted) }},
}

func productStatus(p adminapi.Product) string {
	var s []string
	switch {
	case p.IsSold:
		s = append(s, "sold")
	case p.IsActive:
		s = append(s, "active")
	default:
		s = append(s, "inactive")
	}
	if p.IsFlagged {
		s = append(s, "flagged")
	}
	return strings.Join(s, ", ")
}

var userColumns = []column[adminapi.User]{
	{"ID", 6, func(u adminapi.User) string { return fmtID(u.ID) }},
	{"Username", 16, func(u adminapi.User) string { return u.Username }},
	{"Email", 28, func(u adminapi.User) string { return u.Email }},
	{"Role", 10, func(u adminapi.User) string { return u.Role() }},
	{"Status", 11, func(u adminapi.User) string { return u.Status() }},
	{"Listings", 8, func(u adminapi.User) string { return strconv.Itoa(u.ListingCount) }},
	{"Joined", 16, func(u adminapi.User) string { return when(u.CreatedAt) }},
}

var reportColumns = []column[adminapi.Report]{
	{"ID", 6, func(r adminapi.Report) string { return fmtID(r.ID) }},
	{"Listing", 26, func(r adminapi.Report) string { return r.ProductTitle }},
	{"Reason", 24, func(r adminapi.Report) string { return r.Reason }},
	{"Reports", 7, func(r adminapi.Report) string { return strconv.Itoa(r.ReportCount) }},
	{"Status", 12, func(r adminapi.Report) string { return r.Status }},
	{"Reported", 16, func(r adminapi.Report) string { return when(r.ReportedAt) }},
}

var historyColumns = []column[adminapi.SpotlightHistoryEntry]{
	{"Listing", 26, func(h adminapi.SpotlightHistoryEntry) string { return h.ProductTitle }},
	{"Applied by", 14, func(h adminapi.SpotlightHistoryEntry) string { return h.AppliedBy }},
	{"Start", 16, func(h adminapi.SpotlightHistoryEntry) string { return when(h.StartTime) }},
	{"End", 16, func(h adminapi.SpotlightHistoryEntry) string { return when(h.EndTime) }},
	{"Status", 10, func(h adminapi.SpotlightHistoryEntry) string { return h.Status }},
	{"Removed by", 14, func(h adminapi.SpotlightHistoryEntry) string { return h.RemovedBy }},
}

var logColumns = []column[adminapi.LogEntry]{
	{"When", 16, func(l adminapi.LogEntry) string { return when(l.Timestamp) }},
	{"Who", 14, func(l adminapi.LogEntry) string { return l.Actor }},
	{"Role", 10, func(l adminapi.LogEntry) string { return l.ActorRole }},
	{"Action", 20, func(l adminapi.LogEntry) string { return l.Action }},
	{"Target", 20, func(l adminapi.LogEntry) string { return l.Target }},
	{"Details", 30, func(l adminapi.LogEntry) string { return l.Details }},
}
