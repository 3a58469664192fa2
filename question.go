/*
Copyright © 2025 WildSphee <wildsphee@proton.me>
*/

package main

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
)

// Question is an immutable quiz entry. Answer indexes into Choices.
type Question struct {
	Text    string
	Choices []string
	Answer  int
	Genre   string
}

// QuestionBank holds the loaded question set and hands out random,
// non-repeating draws for individual matches.
type QuestionBank struct {
	mu        sync.RWMutex
	questions []Question
}

// LoadQuestionsCSV replaces the bank's contents with the rows of a CSV
// file shaped as: question,a,b,c,d,answer,genre (header row required,
// answer is the 0-based index of the correct choice).
func (b *QuestionBank) LoadQuestionsCSV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 7

	rows, err := r.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(rows) < 2 {
		return 0, fmt.Errorf("%s contains no questions", path)
	}

	questions := make([]Question, 0, len(rows)-1)
	for i, row := range rows[1:] {
		answer, err := strconv.Atoi(strings.TrimSpace(row[5]))
		if err != nil || answer < 0 || answer > 3 {
			return 0, fmt.Errorf("%s row %d: bad answer index %q", path, i+2, row[5])
		}
		questions = append(questions, Question{
			Text:    row[0],
			Choices: []string{row[1], row[2], row[3], row[4]},
			Answer:  answer,
			Genre:   row[6],
		})
	}

	b.mu.Lock()
	b.questions = questions
	b.mu.Unlock()

	return len(questions), nil
}

// Sample returns up to count random questions without replacement,
// optionally restricted to a genre. The returned slice is owned by the
// caller; the bank is never mutated by a draw.
func (b *QuestionBank) Sample(count int, genre string) []Question {
	b.mu.RLock()
	pool := make([]Question, 0, len(b.questions))
	for _, q := range b.questions {
		if genre != "" && !strings.EqualFold(q.Genre, genre) {
			continue
		}
		pool = append(pool, q)
	}
	b.mu.RUnlock()

	rand.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	if count < len(pool) {
		pool = pool[:count]
	}
	return pool
}

// Len reports how many questions are currently loaded.
func (b *QuestionBank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.questions)
}
