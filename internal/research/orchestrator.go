package research

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ayush/notsodumb/backend/internal/metrics"
	"github.com/ayush/notsodumb/backend/internal/models"
	"github.com/ayush/notsodumb/backend/internal/search"
)

const (
	// MaxContextResults is how many search results feed the model context.
	MaxContextResults = 5
	// MaxSections bounds the history an orchestrator keeps.
	MaxSections = 50

	acknowledgement = "I'll research this using the web sources I find and cite them in my answer."
)

var (
	ErrEmptyQuery = errors.New("query is required")
	ErrNoResults  = errors.New("No relevant search results found.")
	// ErrAborted is returned by Submit when the turn was superseded or its
	// context was cancelled. The section is left untouched.
	ErrAborted = errors.New("research aborted")
)

// Searcher is satisfied by *search.Client.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*models.SearchResponse, error)
}

// Orchestrator runs research turns: search, then a streamed reasoning answer.
// Submitting a new turn aborts the one in flight; an aborted turn never
// commits another change to its section.
type Orchestrator struct {
	searcher Searcher
	streamer Streamer
	metrics  *metrics.Metrics
	log      logrus.FieldLogger

	mu       sync.Mutex
	sections []*models.ChatSection
	cancel   context.CancelFunc
	turn     uint64
}

func NewOrchestrator(s Searcher, st Streamer, log logrus.FieldLogger) *Orchestrator {
	return &Orchestrator{searcher: s, streamer: st, log: log}
}

// turnState is one submitted query. Commits go through it so the abort check
// and the mutation happen under the orchestrator lock.
type turnState struct {
	o       *Orchestrator
	ctx     context.Context
	section *models.ChatSection
	updates *updateQueue
}

func (t *turnState) commit(fn func(s *models.ChatSection)) bool {
	t.o.mu.Lock()
	defer t.o.mu.Unlock()
	if t.ctx.Err() != nil {
		return false
	}
	fn(t.section)
	if t.updates != nil {
		t.updates.push(copySection(t.section))
	}
	return true
}

// Submit runs one turn to completion. onUpdate, when non-nil, receives a
// snapshot after every committed change, in commit order, from a separate
// goroutine that does not hold the orchestrator lock. Submit returns once
// every delivered snapshot has been handled.
func (o *Orchestrator) Submit(ctx context.Context, query string, onUpdate func(models.ChatSection)) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return ErrEmptyQuery
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.cancel = cancel
	o.turn++
	turn := o.turn
	section := &models.ChatSection{Query: query, IsLoadingSources: true}
	o.sections = append(o.sections, section)
	if len(o.sections) > MaxSections {
		o.sections = o.sections[len(o.sections)-MaxSections:]
	}
	var updates *updateQueue
	if onUpdate != nil {
		updates = newUpdateQueue()
		updates.push(copySection(section))
		go updates.deliver(ctx, onUpdate)
	}
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		if o.turn == turn {
			o.cancel = nil
		}
		o.mu.Unlock()
	}()

	t := &turnState{o: o, ctx: ctx, section: section, updates: updates}
	err := o.run(t, query)
	if updates != nil {
		updates.close()
		<-updates.done
	}
	if ctx.Err() != nil {
		return ErrAborted
	}
	return err
}

func (o *Orchestrator) run(t *turnState, query string) error {
	resp, err := o.searcher.Search(t.ctx, search.Request{Query: query, IncludeImages: true})
	o.upstream(t.ctx, "tavily", err)
	if err != nil {
		if t.ctx.Err() == nil {
			o.log.WithError(err).Error("research search")
		}
		t.commit(func(s *models.ChatSection) {
			s.IsLoadingSources = false
			s.Error = "Failed to fetch search results."
		})
		return fmt.Errorf("search: %w", err)
	}
	if len(resp.Results) == 0 {
		t.commit(func(s *models.ChatSection) {
			s.IsLoadingSources = false
			s.Error = ErrNoResults.Error()
		})
		return ErrNoResults
	}

	if !t.commit(func(s *models.ChatSection) {
		s.SearchResults = resp.Results
		s.IsLoadingSources = false
		s.IsLoadingThought = true
	}) {
		return ErrAborted
	}

	body, err := o.streamer.Stream(t.ctx, BuildMessages(query, resp.Results))
	o.upstream(t.ctx, "openai", err)
	if err != nil {
		if t.ctx.Err() == nil {
			o.log.WithError(err).Error("research stream")
		}
		t.commit(func(s *models.ChatSection) {
			s.IsLoadingThought = false
			s.Error = "Failed to generate a response."
		})
		return fmt.Errorf("stream: %w", err)
	}
	defer body.Close()

	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		if t.ctx.Err() != nil {
			return ErrAborted
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		reasoning, content, err := parseDelta([]byte(line))
		if err != nil {
			o.log.WithError(err).Warn("skipping malformed research chunk")
			continue
		}
		if reasoning == "" && content == "" {
			continue
		}
		if !t.commit(func(s *models.ChatSection) {
			s.Reasoning += reasoning
			s.Response += content
			if content != "" {
				s.IsLoadingThought = false
			}
		}) {
			return ErrAborted
		}
	}
	if err := sc.Err(); err != nil {
		if t.ctx.Err() != nil {
			return ErrAborted
		}
		o.log.WithError(err).Error("research stream read")
		t.commit(func(s *models.ChatSection) {
			s.IsLoadingThought = false
			s.Error = "The response stream was interrupted."
		})
		return fmt.Errorf("stream read: %w", err)
	}

	t.commit(func(s *models.ChatSection) { s.IsLoadingThought = false })
	return nil
}

// upstream records a call outcome. Calls cut short by an abort are not failures.
func (o *Orchestrator) upstream(ctx context.Context, service string, err error) {
	if err != nil && ctx.Err() != nil {
		return
	}
	o.metrics.Upstream(service, err)
}

// Busy reports whether a turn is running.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancel != nil
}

// Sections returns copies of the kept sections, oldest first.
func (o *Orchestrator) Sections() []models.ChatSection {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]models.ChatSection, len(o.sections))
	for i, s := range o.sections {
		out[i] = copySection(s)
	}
	return out
}

func copySection(s *models.ChatSection) models.ChatSection {
	c := *s
	if s.SearchResults != nil {
		c.SearchResults = append([]models.SearchResult(nil), s.SearchResults...)
	}
	return c
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
			Reasoning        string `json:"reasoning"`
		} `json:"delta"`
	} `json:"choices"`
}

func parseDelta(line []byte) (reasoning, content string, err error) {
	var chunk streamChunk
	if err := json.Unmarshal(line, &chunk); err != nil {
		return "", "", err
	}
	for _, c := range chunk.Choices {
		reasoning += c.Delta.ReasoningContent + c.Delta.Reasoning
		content += c.Delta.Content
	}
	return reasoning, content, nil
}

// BuildContext renders the top results and the sources-table instruction.
func BuildContext(results []models.SearchResult) string {
	if len(results) > MaxContextResults {
		results = results[:MaxContextResults]
	}

	var b strings.Builder
	b.WriteString("Here is the research data from web searches:\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\nURL: %s\nContent: %s\n\n", i+1, r.Title, r.URL, r.Content)
	}

	b.WriteString("Using the research data above, give a thorough, well-structured answer. ")
	b.WriteString("Cite sources inline as [n]. Finish with a \"Sources\" section formatted as this markdown table:\n\n")
	b.WriteString("| # | Source | URL |\n|---|--------|-----|\n")
	for i, r := range results {
		fmt.Fprintf(&b, "| %d | %s | %s |\n", i+1, tableCell(r.Title), tableCell(r.URL))
	}
	return b.String()
}

// BuildMessages is the conversation sent for one research turn: the query, a
// synthetic assistant acknowledgement, then the composed context.
func BuildMessages(query string, results []models.SearchResult) []models.ChatMessage {
	return []models.ChatMessage{
		{Role: "user", Content: query},
		{Role: "assistant", Content: acknowledgement},
		{Role: "user", Content: BuildContext(results)},
	}
}

func tableCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}
