// SPDX-License-Identifier: GPL-3.0-or-later
package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointsVerdict(t *testing.T) {
	for _, tc := range []struct {
		score, threshold float64
		isSpam           bool
		confidence       float64
	}{
		{score: 5, threshold: 5, isSpam: true, confidence: 0.5},
		{score: 9, threshold: 5, isSpam: true, confidence: 0.8808},
		{score: 1, threshold: 5, isSpam: false, confidence: 0.8808},
		{score: -20, threshold: 5, isSpam: false, confidence: 1},
	} {
		verdict := PointsVerdict(tc.score, tc.threshold)
		assert.Equal(t, tc.isSpam, verdict.IsSpam)
		assert.InDelta(t, tc.confidence, verdict.Confidence, 0.0001)
	}
}

func TestCursorAdvance(t *testing.T) {
	cursor := Cursor{Folder: Inbox, UidValidity: 3, LastUid: 10}
	assert.Equal(t, u32(11), cursor.Advance(11).LastUid)
	assert.Equal(t, u32(10), cursor.Advance(4).LastUid)
	assert.Equal(t, u32(10), cursor.LastUid)
}

func u32(v int) uint32 {
	return uint32(v)
}
