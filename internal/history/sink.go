package history

import (
	"log"
	"time"

	"github.com/dreamtools/dream-background-remover/internal/i18n"
	"github.com/dreamtools/dream-background-remover/internal/model"
)

// Sink records terminal events into the store. Progress events are not
// persisted. Runs on the dispatch loop like every other sink.
type Sink struct {
	store *Store
	lang  i18n.Language
}

func NewSink(store *Store, lang i18n.Language) *Sink {
	return &Sink{store: store, lang: lang}
}

func (s *Sink) OnProgress(ev model.ProgressEvent) {}

func (s *Sink) OnTerminal(jobID string, res model.TerminalResult) {
	entry := &model.HistoryEntry{
		JobID:      jobID,
		Target:     res.Job.Target,
		Mode:       res.Job.Mode,
		State:      res.State,
		CreatedAt:  res.Job.CreatedAt,
		FinishedAt: time.Now(),
	}
	if res.Job.CompletedAt != nil {
		entry.FinishedAt = *res.Job.CompletedAt
	}
	if res.Error != nil {
		entry.ErrorKind = string(res.Error.Kind)
		entry.Message = i18n.Localize(s.lang, res.Error.MessageKey, res.Error.Params)
	} else if res.State == model.JobStateCancelled {
		entry.Message = i18n.Localize(s.lang, i18n.KeyCancelled, nil)
	} else if res.Ref != nil {
		key := i18n.KeyDoneFileCreated
		params := map[string]string{"path": res.Ref.Path}
		if res.Ref.Kind == model.RefKindLayer {
			key = i18n.KeyDoneLayerCreated
			params = map[string]string{"name": res.Ref.LayerName}
		}
		entry.Message = i18n.Localize(s.lang, key, params)
	}

	if err := s.store.Record(entry); err != nil {
		log.Printf("[History] Failed to record job %s: %v", jobID, err)
	}
}
