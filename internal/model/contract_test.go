package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestCitationUnmarshal(t *testing.T) {
	var cites []Citation
	err := json.Unmarshal([]byte(`["data/lease.pdf", {"id": 2, "source": "doc.pdf", "page": 3, "ocr": true}, {"id": "7"}]`), &cites)
	require.NoError(t, err)
	require.Len(t, cites, 3)

	assert.Equal(t, "data/lease.pdf", cites[0].Source)
	assert.Nil(t, cites[0].Page)

	assert.Equal(t, "2", cites[1].ID)
	assert.Equal(t, "doc.pdf", cites[1].Source)
	require.NotNil(t, cites[1].Page)
	assert.Equal(t, 3, *cites[1].Page)
	assert.True(t, cites[1].OCR)
	assert.Equal(t, "doc.pdf, page 3, OCR", cites[1].Describe())

	// source 缺失时回退到 id
	assert.Equal(t, "7", cites[2].Label())
}

func TestCitationPageLenient(t *testing.T) {
	tests := []struct {
		name string
		page string
		want *int
	}{
		{name: "integer", page: `3`, want: intPtr(3)},
		{name: "integral float", page: `3.0`, want: intPtr(3)},
		{name: "numeric string", page: `"3"`, want: intPtr(3)},
		{name: "null", page: `null`, want: nil},
		{name: "roman numeral", page: `"iv"`, want: nil},
		{name: "fraction", page: `2.5`, want: nil},
		{name: "object", page: `{"n":3}`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Citation
			require.NoError(t, json.Unmarshal([]byte(`{"source":"doc.pdf","page":`+tt.page+`}`), &c))
			assert.Equal(t, "doc.pdf", c.Source)
			assert.Equal(t, tt.want, c.Page)
		})
	}
}

func TestDecodeChatResponseKeepsAnswerWithOddPage(t *testing.T) {
	for _, page := range []string{`3.0`, `"3"`, `"iv"`} {
		resp, err := DecodeChatResponse([]byte(`{"answer":"42","citations":[{"source":"doc.pdf","page":` + page + `}]}`))
		require.NoError(t, err, page)
		assert.Equal(t, "42", resp.Answer)
		require.Len(t, resp.Citations, 1)
		assert.Equal(t, "doc.pdf", resp.Citations[0].Source)
	}
}

func TestCitationUnmarshalRejectsNumbers(t *testing.T) {
	var cites []Citation
	err := json.Unmarshal([]byte(`[42]`), &cites)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCitation))
}

func TestDecodeChatResponse(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		answer    string
		citations int
		wantErr   bool
	}{
		{name: "full", body: `{"answer":"42","citations":[{"source":"doc.pdf","page":3}]}`, answer: "42", citations: 1},
		{name: "missing answer", body: `{"citations":["a.pdf"]}`, answer: "", citations: 1},
		{name: "missing citations", body: `{"answer":"hi"}`, answer: "hi", citations: 0},
		{name: "null fields", body: `{"answer":null,"citations":null}`, answer: "", citations: 0},
		{name: "extra fields ignored", body: `{"answer":"x","debug":{"k":1}}`, answer: "x", citations: 0},
		{name: "answer not a string", body: `{"answer":5}`, wantErr: true},
		{name: "citations not a list", body: `{"answer":"x","citations":"a.pdf"}`, wantErr: true},
		{name: "array body", body: `["x"]`, wantErr: true},
		{name: "null body", body: `null`, wantErr: true},
		{name: "not json", body: `<html>oops</html>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := DecodeChatResponse([]byte(tt.body))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrResponseShape))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.answer, resp.Answer)
			assert.NotNil(t, resp.Citations)
			assert.Len(t, resp.Citations, tt.citations)
		})
	}
}

func TestChatRequestWireShape(t *testing.T) {
	data, err := json.Marshal(ChatRequest{SessionID: "s-1", Question: "rent?", TopK: 4})
	require.NoError(t, err)
	assert.JSONEq(t, `{"session_id":"s-1","question":"rent?","top_k":4}`, string(data))
}
