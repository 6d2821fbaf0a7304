// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// TextStatsName is the registered name of the text statistics capability.
const TextStatsName = "Text Statistics"

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// TextStats reports character, word and uniqueness counts for a text.
type TextStats struct{}

// TextStatsResult is the JSON document returned by TextStats.
type TextStatsResult struct {
	OriginalText         string  `json:"original_text"`
	CleanedText          string  `json:"cleaned_text"`
	CharacterCount       int     `json:"character_count"`
	WordCount            int     `json:"word_count"`
	AverageWordLength    float64 `json:"average_word_length"`
	UniqueCharacterCount int     `json:"unique_character_count"`
	CountSpaces          bool    `json:"count_spaces"`
	CountPunctuation     bool    `json:"count_punctuation"`
}

// NewTextStats creates the text statistics capability.
func NewTextStats() *TextStats { return &TextStats{} }

func (t *TextStats) Name() string { return TextStatsName }

func (t *TextStats) Description() string {
	return "Calculates text statistics: character count, word count, average word length and unique characters. " +
		`Args: ["<text>", "<count_spaces true|false>", "<count_punctuation true|false>"]; both flags default to true.`
}

// Invoke analyses args[0]. Optional args[1] and args[2] toggle whether
// spaces and punctuation are counted.
func (t *TextStats) Invoke(_ context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("text statistics: text argument is required")
	}
	countSpaces, err := boolArg(args, 1, "count_spaces")
	if err != nil {
		return "", err
	}
	countPunct, err := boolArg(args, 2, "count_punctuation")
	if err != nil {
		return "", err
	}

	res := Analyze(args[0], countSpaces, countPunct)
	data, err := json.Marshal(res)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Analyze computes the statistics for text.
func Analyze(text string, countSpaces, countPunctuation bool) TextStatsResult {
	cleaned := strings.Trim(strings.TrimSpace(text), `'"`)
	if !countPunctuation {
		cleaned = punctuation.ReplaceAllString(cleaned, "")
	}

	noSpaces := strings.ReplaceAll(cleaned, " ", "")
	chars := utf8.RuneCountInString(cleaned)
	if !countSpaces {
		chars = utf8.RuneCountInString(noSpaces)
	}

	words := len(strings.Fields(cleaned))
	var avg float64
	if words > 0 {
		avg = math.Round(float64(chars)/float64(words)*100) / 100
	}

	unique := make(map[rune]struct{})
	for _, r := range noSpaces {
		unique[r] = struct{}{}
	}

	return TextStatsResult{
		OriginalText:         text,
		CleanedText:          cleaned,
		CharacterCount:       chars,
		WordCount:            words,
		AverageWordLength:    avg,
		UniqueCharacterCount: len(unique),
		CountSpaces:          countSpaces,
		CountPunctuation:     countPunctuation,
	}
}

func boolArg(args []string, i int, name string) (bool, error) {
	if len(args) <= i || strings.TrimSpace(args[i]) == "" {
		return true, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(args[i]))
	if err != nil {
		return false, fmt.Errorf("text statistics: %s must be true or false, got %q", name, args[i])
	}
	return v, nil
}
