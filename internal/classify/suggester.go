// Package classify learns per-user category habits from stored
// transactions with a TF-IDF naive Bayes classifier. Suggestions only
// pre-select buttons; they never write anything on their own.
package classify

import (
	"context"
	"fmt"
	"sync"

	"github.com/jbrukh/bayesian"

	"github.com/dvloznov/ledger-assistant/internal/ledger"
	"github.com/dvloznov/ledger-assistant/internal/retrieval"
)

// minExamples is the smallest number of labeled notes worth training on.
const minExamples = 4

type model struct {
	classifier *bayesian.Classifier
	classes    []bayesian.Class
}

// Suggester holds one trained classifier per user. Training swaps the
// model atomically, so Suggest never sees a half-built classifier.
type Suggester struct {
	mu     sync.RWMutex
	models map[string]*model
}

// NewSuggester creates an empty suggester.
func NewSuggester() *Suggester {
	return &Suggester{models: make(map[string]*model)}
}

// Train rebuilds the user's classifier from their transactions. Users
// with too few labeled notes, or notes in fewer than two categories, get
// no model; Suggest then stays silent for them.
func (s *Suggester) Train(userID string, txs []*ledger.Transaction) error {
	byCategory := make(map[string][][]string)
	examples := 0
	for _, tx := range txs {
		if tx.Note == "" || tx.CategoryID == "" {
			continue
		}
		words := retrieval.Tokenize(tx.Note)
		if len(words) == 0 {
			continue
		}
		byCategory[tx.CategoryID] = append(byCategory[tx.CategoryID], words)
		examples++
	}

	if len(byCategory) < 2 || examples < minExamples {
		s.mu.Lock()
		delete(s.models, userID)
		s.mu.Unlock()
		return nil
	}

	classes := make([]bayesian.Class, 0, len(byCategory))
	for id := range byCategory {
		classes = append(classes, bayesian.Class(id))
	}

	classifier := bayesian.NewClassifierTfIdf(classes...)
	for _, class := range classes {
		for _, words := range byCategory[string(class)] {
			classifier.Learn(words, class)
		}
	}
	classifier.ConvertTermsFreqToTfIdf()

	s.mu.Lock()
	s.models[userID] = &model{classifier: classifier, classes: classes}
	s.mu.Unlock()
	return nil
}

// TrainFromStore loads the user's transactions and retrains. Used by the
// background job fired after each write.
func (s *Suggester) TrainFromStore(ctx context.Context, store ledger.Store, userID string) error {
	txs, err := store.GetTransactions(ctx, userID)
	if err != nil {
		return fmt.Errorf("classify.TrainFromStore: %w", err)
	}
	return s.Train(userID, txs)
}

// Suggest returns the most likely category id for the text, or "" when
// the user has no model or the classifier is not confident.
func (s *Suggester) Suggest(ctx context.Context, userID, text string) string {
	s.mu.RLock()
	m := s.models[userID]
	s.mu.RUnlock()
	if m == nil {
		return ""
	}

	words := retrieval.Tokenize(text)
	if len(words) == 0 {
		return ""
	}

	_, inx, strict := m.classifier.LogScores(words)
	if !strict || inx < 0 || inx >= len(m.classes) {
		return ""
	}
	return string(m.classes[inx])
}
