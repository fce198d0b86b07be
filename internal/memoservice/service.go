// Package memoservice coordinates editing documents with the content store:
// the save path, the view path with its render cache, and change events.
package memoservice

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/starford/memos/internal/apperr"
	"github.com/starford/memos/internal/checksum"
	"github.com/starford/memos/internal/document"
	"github.com/starford/memos/internal/linkgraph"
	"github.com/starford/memos/internal/metrics"
	"github.com/starford/memos/internal/models"
	"github.com/starford/memos/internal/render"
	"github.com/starford/memos/internal/store"
)

// Store is the content store the service works against.
type Store interface {
	GetMemo(ctx context.Context, id int64) (*models.Memo, error)
	CreateMemo(ctx context.Context, content string, vis models.Visibility) (*models.Memo, error)
	PatchMemo(ctx context.Context, id int64, patch models.MemoPatch) (*models.Memo, models.Change, error)
	DeleteMemo(ctx context.Context, id int64) error
	ListMemos(ctx context.Context, opts store.ListOptions) ([]models.Memo, int, error)
	ListTags(ctx context.Context) ([]models.TagCount, error)
	Search(ctx context.Context, query string, limit int) ([]store.SearchResult, error)
	ListLinkedCandidates(ctx context.Context, query string, limit int) ([]models.MemoSummary, error)
	ListBackwardCandidates(ctx context.Context, selfID int64) ([]models.MemoSummary, error)
}

// Config holds editing and rendering settings.
type Config struct {
	// Trigger opens a suggestion session offering memos and tags.
	Trigger rune
	// TagTrigger, when set, opens a session offering tags only.
	TagTrigger rune
	// CandidateLimit caps the candidates offered per session.
	CandidateLimit int
	// CandidatePool is how many recent memos a session snapshot holds.
	CandidatePool int
	// PreviewLength caps list previews, in runes.
	PreviewLength int
	// CacheTTL is how long rendered HTML is kept.
	CacheTTL time.Duration
	// DefaultVisibility applies to newly created memos.
	DefaultVisibility models.Visibility
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		Trigger:           document.DefaultTrigger,
		CandidateLimit:    document.DefaultCandidateLimit,
		CandidatePool:     200,
		PreviewLength:     120,
		CacheTTL:          10 * time.Minute,
		DefaultVisibility: models.Private,
	}
}

// Service coordinates documents, the store and the renderer.
// It is safe for concurrent use; each Document it hands out is not.
type Service struct {
	store    Store
	resolver *linkgraph.Resolver
	renderer *render.Renderer
	html     *cache.Cache
	metrics  *metrics.Metrics
	cfg      Config

	mu        sync.RWMutex
	listeners []Listener
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets editing and rendering settings.
func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithMetrics records save, render and resolution metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRenderer replaces the default renderer.
func WithRenderer(r *render.Renderer) Option {
	return func(s *Service) {
		s.renderer = r
	}
}

// New creates a memo service over st.
func New(st Store, opts ...Option) *Service {
	s := &Service{
		store:    st,
		resolver: linkgraph.NewResolver(st),
		renderer: render.New(),
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.CandidateLimit <= 0 {
		s.cfg.CandidateLimit = document.DefaultCandidateLimit
	}
	if s.cfg.CacheTTL <= 0 {
		s.cfg.CacheTTL = DefaultConfig().CacheTTL
	}
	if !s.cfg.DefaultVisibility.Valid() {
		s.cfg.DefaultVisibility = models.Private
	}
	s.html = cache.New(s.cfg.CacheTTL, 2*s.cfg.CacheTTL)
	return s
}

// MemoItem is a memo in a list response with its one-line preview.
type MemoItem struct {
	models.Memo
	Preview string `json:"preview"`
}

// MemoView is the full read model of a memo.
type MemoView struct {
	models.Memo
	HTML  string          `json:"html"`
	Plain string          `json:"plain"`
	Links linkgraph.Graph `json:"links"`
}

// documentOptions returns the options every document handed out carries.
func (s *Service) documentOptions(src document.CandidateSource) []document.Option {
	opts := []document.Option{
		document.WithCandidateSource(src),
		document.WithCandidateLimit(s.cfg.CandidateLimit),
	}
	if s.cfg.Trigger != 0 {
		opts = append(opts, document.WithTrigger(s.cfg.Trigger, document.RefMemo, document.RefTag))
	}
	if s.cfg.TagTrigger != 0 && s.cfg.TagTrigger != s.cfg.Trigger {
		opts = append(opts, document.WithTrigger(s.cfg.TagTrigger, document.RefTag))
	}
	return opts
}

// NewDocument returns an empty document whose suggestion sessions draw
// from a snapshot of the store taken now.
func (s *Service) NewDocument(ctx context.Context) (*document.Document, error) {
	src, err := s.Candidates(ctx, 0)
	if err != nil {
		return nil, err
	}
	return document.New(s.documentOptions(src)...), nil
}

// OpenDocument loads memo id into a document for editing.
func (s *Service) OpenDocument(ctx context.Context, id int64) (*document.Document, *models.Memo, error) {
	m, err := s.store.GetMemo(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	src, err := s.Candidates(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return document.FromStorageString(m.Content, s.documentOptions(src)...), m, nil
}

// Candidates builds the in-memory suggestion snapshot: recent normal memos
// other than selfID, and every tag in use.
func (s *Service) Candidates(ctx context.Context, selfID int64) (document.StaticCandidates, error) {
	memos, err := s.store.ListLinkedCandidates(ctx, "", s.cfg.CandidatePool)
	if err != nil {
		return nil, err
	}
	tags, err := s.store.ListTags(ctx)
	if err != nil {
		return nil, err
	}

	out := make(document.StaticCandidates, 0, len(memos)+len(tags))
	for _, m := range memos {
		if m.ID == selfID {
			continue
		}
		text := s.PlainText(m.Content)
		label := render.FirstLine(text)
		if label == "" {
			label = strconv.FormatInt(m.ID, 10)
		}
		out = append(out, document.Candidate{
			Kind:    document.RefMemo,
			Target:  strconv.FormatInt(m.ID, 10),
			Label:   label,
			Text:    text,
			Recency: m.UpdatedTs,
		})
	}
	for _, t := range tags {
		out = append(out, document.Candidate{
			Kind:   document.RefTag,
			Target: t.Label,
			Label:  t.Label,
		})
	}
	return out, nil
}

// Save persists doc as memo id, or as a new memo when id is zero. When
// ifMatch is set it must equal the stored checksum. The document is read
// but never modified by a failed save; after a successful one any open
// suggestion session is cancelled.
func (s *Service) Save(ctx context.Context, doc *document.Document, id int64, ifMatch string) (*models.Memo, error) {
	return s.save(ctx, doc, id, ifMatch, s.cfg.DefaultVisibility)
}

// Create canonicalizes content and stores it as a new memo. An empty vis
// means the configured default.
func (s *Service) Create(ctx context.Context, content string, vis models.Visibility) (*models.Memo, error) {
	if vis == "" {
		vis = s.cfg.DefaultVisibility
	}
	return s.save(ctx, document.FromStorageString(content), 0, "", vis)
}

func (s *Service) save(ctx context.Context, doc *document.Document, id int64, ifMatch string, vis models.Visibility) (*models.Memo, error) {
	started := time.Now()
	if doc.IsEmpty() {
		s.metrics.RecordSave("rejected", started)
		return nil, fmt.Errorf("memoservice: save: %w", apperr.ErrEmptyContent)
	}
	content := doc.ToStorageString()

	var (
		m    *models.Memo
		kind EventKind
		err  error
	)
	if id == 0 {
		m, err = s.store.CreateMemo(ctx, content, vis)
		kind = EventCreated
	} else {
		m, kind, err = s.patchContent(ctx, id, content, ifMatch)
	}
	if err != nil {
		s.metrics.RecordSave("failed", started)
		return nil, err
	}

	doc.CancelSuggestion()
	if kind == "" {
		s.metrics.RecordSave("unchanged", started)
		return m, nil
	}
	s.metrics.RecordSave(string(kind), started)
	s.emit(Event{Kind: kind, ID: m.ID, Memo: m})
	return m, nil
}

// SaveContent canonicalizes a storage string through the document model
// and saves it like Save.
func (s *Service) SaveContent(ctx context.Context, id int64, content, ifMatch string) (*models.Memo, error) {
	return s.Save(ctx, document.FromStorageString(content), id, ifMatch)
}

// patchContent updates the content of memo id. An empty kind means the
// content was already current and nothing was written.
func (s *Service) patchContent(ctx context.Context, id int64, content, ifMatch string) (*models.Memo, EventKind, error) {
	m, ch, err := s.store.PatchMemo(ctx, id, models.MemoPatch{Content: &content, IfMatch: ifMatch})
	if err != nil {
		return nil, "", err
	}
	if !ch.Content {
		return m, "", nil
	}
	return m, EventUpdated, nil
}

// Get returns memo id.
func (s *Service) Get(ctx context.Context, id int64) (*models.Memo, error) {
	return s.store.GetMemo(ctx, id)
}

// View returns memo id with its HTML, plain text and link graph.
func (s *Service) View(ctx context.Context, id int64) (*MemoView, error) {
	m, err := s.store.GetMemo(ctx, id)
	if err != nil {
		return nil, err
	}
	links, err := s.Links(ctx, m)
	if err != nil {
		return nil, err
	}
	html := s.renderCached(m.Checksum, m.Content)
	return &MemoView{
		Memo:  *m,
		HTML:  html,
		Plain: render.PlainText(html),
		Links: links,
	}, nil
}

// Links resolves the forward and backward links of m.
func (s *Service) Links(ctx context.Context, m *models.Memo) (linkgraph.Graph, error) {
	started := time.Now()
	g, err := s.resolver.Resolve(ctx, m.Content, m.ID)
	if err != nil {
		return linkgraph.Graph{}, err
	}
	s.metrics.RecordLinkResolution(started)
	return g, nil
}

// LinksByID resolves the link graph of memo id.
func (s *Service) LinksByID(ctx context.Context, id int64) (linkgraph.Graph, error) {
	m, err := s.store.GetMemo(ctx, id)
	if err != nil {
		return linkgraph.Graph{}, err
	}
	return s.Links(ctx, m)
}

// Render converts a storage string to HTML, serving repeats from the cache.
func (s *Service) Render(content string) string {
	return s.renderCached(checksum.Sum([]byte(content)), content)
}

// PlainText returns the plain text of a storage string.
func (s *Service) PlainText(content string) string {
	return render.PlainText(s.Render(content))
}

// renderCached keys rendered HTML by content checksum, so entries never go stale.
func (s *Service) renderCached(sum, content string) string {
	key := "html:" + sum
	if v, ok := s.html.Get(key); ok {
		s.metrics.RecordRender(true)
		return v.(string)
	}
	html := s.renderer.Render(content)
	s.html.SetDefault(key, html)
	s.metrics.RecordRender(false)
	return html
}

// SetRowStatus archives or restores memo id.
func (s *Service) SetRowStatus(ctx context.Context, id int64, status models.RowStatus) (*models.Memo, error) {
	return s.Patch(ctx, id, models.MemoPatch{RowStatus: &status}, "")
}

// SetVisibility changes who may read memo id.
func (s *Service) SetVisibility(ctx context.Context, id int64, vis models.Visibility) (*models.Memo, error) {
	return s.Patch(ctx, id, models.MemoPatch{Visibility: &vis}, "")
}

// Patch applies a partial update as one store write. Content is
// canonicalized like Save; every field is validated before anything is
// written, so a rejected patch changes nothing.
func (s *Service) Patch(ctx context.Context, id int64, patch models.MemoPatch, ifMatch string) (*models.Memo, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("memoservice: patch memo %d: nothing to change: %w", id, apperr.ErrInvalidInput)
	}
	if patch.Visibility != nil && !patch.Visibility.Valid() {
		return nil, fmt.Errorf("memoservice: patch memo %d: visibility %q: %w", id, *patch.Visibility, apperr.ErrInvalidInput)
	}
	if patch.RowStatus != nil && !patch.RowStatus.Valid() {
		return nil, fmt.Errorf("memoservice: patch memo %d: row status %q: %w", id, *patch.RowStatus, apperr.ErrInvalidInput)
	}

	started := time.Now()
	if patch.Content != nil {
		doc := document.FromStorageString(*patch.Content)
		if doc.IsEmpty() {
			s.metrics.RecordSave("rejected", started)
			return nil, fmt.Errorf("memoservice: patch memo %d: %w", id, apperr.ErrEmptyContent)
		}
		content := doc.ToStorageString()
		patch.Content = &content
	}
	if ifMatch != "" {
		patch.IfMatch = ifMatch
	}

	m, ch, err := s.store.PatchMemo(ctx, id, patch)
	if err != nil {
		if patch.Content != nil {
			s.metrics.RecordSave("failed", started)
		}
		return nil, err
	}
	if patch.Content != nil {
		result := "unchanged"
		if ch.Content {
			result = string(EventUpdated)
		}
		s.metrics.RecordSave(result, started)
	}

	if ch.Content || ch.Visibility {
		s.emit(Event{Kind: EventUpdated, ID: m.ID, Memo: m})
	}
	if ch.RowStatus {
		kind := EventRestored
		if m.RowStatus == models.Archived {
			kind = EventArchived
		}
		s.emit(Event{Kind: kind, ID: m.ID, Memo: m})
	}
	return m, nil
}

// Delete removes memo id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteMemo(ctx, id); err != nil {
		return err
	}
	s.emit(Event{Kind: EventDeleted, ID: id})
	return nil
}

// List returns memos newest first with previews.
func (s *Service) List(ctx context.Context, opts store.ListOptions) ([]MemoItem, int, error) {
	memos, total, err := s.store.ListMemos(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	items := make([]MemoItem, len(memos))
	for i, m := range memos {
		items[i] = MemoItem{
			Memo:    m,
			Preview: s.Preview(m.Content),
		}
	}
	return items, total, nil
}

// Preview returns the one-line preview of a storage string.
func (s *Service) Preview(content string) string {
	return render.PreviewText(s.PlainText(content), s.cfg.PreviewLength)
}

// Search delegates full-text search to the store.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	return s.store.Search(ctx, query, limit)
}

// Tags returns the tags in use.
func (s *Service) Tags(ctx context.Context) ([]models.TagCount, error) {
	return s.store.ListTags(ctx)
}
