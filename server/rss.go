package server

import (
	"encoding/xml"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/umputun/eventscope/pkg/domain"
)

const (
	defaultRSSLimit = 100
	evNamespace     = "http://purl.org/rss/1.0/modules/event/"
)

// rssDoc is an RSS 2.0 document with the event module namespace
type rssDoc struct {
	XMLName xml.Name    `xml:"rss"`
	Version string      `xml:"version,attr"`
	Atom    string      `xml:"xmlns:atom,attr"`
	Ev      string      `xml:"xmlns:ev,attr"`
	Channel *rssChannel `xml:"channel"`
}

type rssChannel struct {
	XMLName       xml.Name   `xml:"channel"`
	Title         string     `xml:"title"`
	Link          string     `xml:"link"`
	Description   string     `xml:"description"`
	AtomLink      *atomLink  `xml:"http://www.w3.org/2005/Atom link"`
	LastBuildDate string     `xml:"lastBuildDate"`
	Items         []*rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string   `xml:"title"`
	Link        string   `xml:"link,omitempty"`
	GUID        rssGUID  `xml:"guid"`
	Description string   `xml:"description"`
	PubDate     string   `xml:"pubDate"`
	Categories  []string `xml:"category"`
	StartDate   string   `xml:"ev:startdate"`
	EndDate     string   `xml:"ev:enddate,omitempty"`
	Location    string   `xml:"ev:location,omitempty"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// rssHandler serves stored events as RSS for reviewers, pending ones unless ?status= says otherwise.
// Event dates go to the "ev" module, pubDate is the time the event was first extracted.
func (s *Server) rssHandler(w http.ResponseWriter, r *http.Request) {
	filter, err := eventFilter(r, defaultRSSLimit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.URL.Query().Get("status") == "" {
		filter.Status = domain.ApprovalPending
	}

	events, err := s.db.ListEvents(r.Context(), filter)
	if err != nil {
		log.Printf("[ERROR] failed to get events for RSS: %v", err)
		http.Error(w, "Failed to generate RSS feed", http.StatusInternalServerError)
		return
	}

	rss, err := generateRSS(baseURL(r), string(filter.Status), events, time.Now())
	if err != nil {
		log.Printf("[ERROR] failed to generate RSS feed: %v", err)
		http.Error(w, "Failed to generate RSS feed", http.StatusInternalServerError)
		return
	}

	// set content type and write RSS
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	if _, err := w.Write([]byte(rss)); err != nil {
		log.Printf("[ERROR] failed to write RSS response: %v", err)
	}
}

// generateRSS creates an RSS 2.0 feed from stored events
func generateRSS(base, status string, events []*domain.StoredEvent, now time.Time) (string, error) {
	title := "eventscope - all events"
	selfLink := base + "/rss/events"
	if status != "" {
		title = "eventscope - " + status + " events"
		selfLink += "?status=" + status
	}

	items := make([]*rssItem, 0, len(events))
	for _, ev := range events {
		items = append(items, toRSSItem(ev))
	}

	feed := &rssDoc{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Ev:      evNamespace,
		Channel: &rssChannel{
			Title:         title,
			Link:          base + "/",
			Description:   "Events extracted from configured sources",
			AtomLink:      &atomLink{Href: selfLink, Rel: "self", Type: "application/rss+xml"},
			LastBuildDate: now.Format(time.RFC1123Z),
			Items:         items,
		},
	}

	output, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal RSS: %w", err)
	}
	return xml.Header + string(output), nil
}

func toRSSItem(ev *domain.StoredEvent) *rssItem {
	desc := fmt.Sprintf("Confidence: %d/100, date %s", ev.Confidence, ev.DateConfidence)
	if ev.Price != "" {
		desc += ", price " + ev.Price
	}
	if ev.Description != "" {
		desc += "\n\n" + ev.Description
	}

	item := &rssItem{
		Title:       ev.Title,
		Link:        ev.URL,
		GUID:        rssGUID{Value: "eventscope:" + ev.Fingerprint},
		Description: desc,
		PubDate:     ev.CreatedAt.Format(time.RFC1123Z),
		Categories:  []string{string(ev.ApprovalStatus), "source-" + strconv.FormatInt(ev.SourceID, 10)},
		StartDate:   ev.Start.Format(time.RFC3339),
		Location:    ev.Location,
	}
	if ev.End != nil {
		item.EndDate = ev.End.Format(time.RFC3339)
	}
	return item
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
