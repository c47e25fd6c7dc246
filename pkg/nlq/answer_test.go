package nlq

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestAnswerer(client *mockAIClient) *Answerer {
	return NewAnswerer(NewAnswererParams{
		AIClient:    client,
		AnswerModel: "qwen-plus",
		Timeout:     time.Second,
	})
}

func testPlan() QueryPlan {
	return QueryPlan{
		Intent:        IntentQA,
		QueryLanguage: "graphql",
		Query:         "query { medicines(name: \"阿司匹林\") { doc_id name } }",
		Variables:     map[string]any{},
		Safety:        Safety{MaxRows: 20},
		AnswerStyle:   AnswerStyle{Tone: "normal", IncludeEvidence: true},
	}
}

func TestGenerateAnswerParsesPayload(t *testing.T) {
	payload := `{"answer": "阿司匹林收载于药典第二部。", "evidence": [{"text": "【阿司匹林】", "nodeIds": ["51440"], "edgeIds": []}]}`
	client := &mockAIClient{responses: []string{payload}}
	answerer := newTestAnswerer(client)

	answer, evidence := answerer.GenerateAnswer(context.Background(), "阿司匹林在哪一部", testPlan(), sampleResult())
	if answer != "阿司匹林收载于药典第二部。" {
		t.Fatalf("answer = %q", answer)
	}
	if len(evidence) != 1 || evidence[0].NodeIDs[0] != "51440" {
		t.Fatalf("evidence = %+v", evidence)
	}
}

func TestGenerateAnswerDegradesOnLLMFailure(t *testing.T) {
	client := &mockAIClient{
		errs: []error{errors.New("timeout"), errors.New("timeout")},
	}
	answerer := newTestAnswerer(client)

	answer, evidence := answerer.GenerateAnswer(context.Background(), "阿司匹林", testPlan(), sampleResult())
	if answer != fallbackAnswer {
		t.Fatalf("answer = %q, want fallback apology", answer)
	}
	if len(evidence) != 0 {
		t.Fatalf("evidence = %+v, want empty", evidence)
	}
	if client.calls != 2 {
		t.Fatalf("got %d calls, want 2 (one retry)", client.calls)
	}
}

func TestGenerateAnswerFallsBackToRawText(t *testing.T) {
	raw := "阿司匹林是一种解热镇痛药，收载于药典第二部。没有按要求输出结构化内容。"
	client := &mockAIClient{responses: []string{raw}}
	answerer := newTestAnswerer(client)

	answer, evidence := answerer.GenerateAnswer(context.Background(), "阿司匹林", testPlan(), sampleResult())
	if answer != raw {
		t.Fatalf("answer = %q, want raw model text", answer)
	}
	if len(evidence) != 0 {
		t.Fatalf("evidence = %+v, want empty", evidence)
	}
}

func TestGenerateAnswerEmptyAnswerField(t *testing.T) {
	client := &mockAIClient{responses: []string{`{"answer": "", "evidence": []}`}}
	answerer := newTestAnswerer(client)

	answer, _ := answerer.GenerateAnswer(context.Background(), "阿司匹林", testPlan(), sampleResult())
	if answer != emptyAnswer {
		t.Fatalf("answer = %q, want %q", answer, emptyAnswer)
	}
}

func TestGenerateAnswerNeverPanicsOnNilResult(t *testing.T) {
	client := &mockAIClient{responses: []string{`{"answer": "未查询到相关信息", "evidence": []}`}}
	answerer := newTestAnswerer(client)

	answer, _ := answerer.GenerateAnswer(context.Background(), "不存在的药品", testPlan(), nil)
	if answer == "" {
		t.Fatal("expected an answer for empty result")
	}
}
