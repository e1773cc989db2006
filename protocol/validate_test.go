package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NethermindEth/masp/core"
)

func TestParseDecision_Valid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want core.Decision
	}{
		{
			name: "post",
			body: `{"action":"POST","content":"hello","reasoning":"why not"}`,
			want: core.Decision{Action: core.ActionPost, Content: "hello", Reasoning: "why not"},
		},
		{
			name: "wrapped like",
			body: `{"decision":{"action":"LIKE","target":"Bob","reasoning":"good point","target_post_id":7}}`,
			want: core.Decision{Action: core.ActionLike, Target: "Bob", Reasoning: "good point", TargetPostID: core.PostID(7)},
		},
		{
			name: "integral float id",
			body: `{"action":"REPLY","target":"Bob","content":"yes","reasoning":"r","target_post_id":3.0}`,
			want: core.Decision{Action: core.ActionReply, Target: "Bob", Content: "yes", Reasoning: "r", TargetPostID: core.PostID(3)},
		},
		{
			name: "null id ignored",
			body: `{"action":"ACCUSE","target":"Bob","content":"liar","reasoning":"r","target_post_id":null}`,
			want: core.Decision{Action: core.ActionAccuse, Target: "Bob", Content: "liar", Reasoning: "r"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecision([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDecision_Rejects(t *testing.T) {
	long := strings.Repeat("x", MaxContentLength+1)
	tests := map[string]string{
		"not json":            `nope`,
		"array":               `[1,2]`,
		"unknown action":      `{"action":"SHOUT","content":"a","reasoning":"b"}`,
		"action not string":   `{"action":1,"content":"a","reasoning":"b"}`,
		"post missing text":   `{"action":"POST","reasoning":"b"}`,
		"empty reasoning":     `{"action":"POST","content":"a","reasoning":""}`,
		"like missing target": `{"action":"LIKE","reasoning":"b"}`,
		"target not string":   `{"action":"LIKE","target":5,"reasoning":"b"}`,
		"content not string":  `{"action":"POST","content":{"x":1},"reasoning":"b"}`,
		"fractional id":       `{"action":"LIKE","target":"Bob","reasoning":"b","target_post_id":1.5}`,
		"string id":           `{"action":"LIKE","target":"Bob","reasoning":"b","target_post_id":"1"}`,
		"content too long":    `{"action":"POST","content":"` + long + `","reasoning":"b"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseDecision([]byte(body))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidDecision)
		})
	}
}

func TestValidate_ContentLimitCountsCharacters(t *testing.T) {
	d := core.Decision{Action: core.ActionPost, Content: strings.Repeat("é", MaxContentLength), Reasoning: "r"}
	assert.NoError(t, Validate(d))

	d.Content += "é"
	assert.ErrorIs(t, Validate(d), ErrInvalidDecision)
}
