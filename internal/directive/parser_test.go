package directive

import (
	"reflect"
	"testing"
)

func TestHasDirectionalSyntax(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"plain text", "analyze trends in the data", false},
		{"simple directive", "code_agent > testing_agent: run unit tests", true},
		{"bracketed targets", "lead > [search_agent, code_agent]: investigate", true},
		{"directive mid-text", "analyze trends\ncode_agent > testing_agent: run unit tests", true},
		{"url with colon", "fetch https://example.com: the docs", false},
		{"comparison operator", "check that x > y: is true", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasDirectionalSyntax(tt.text); got != tt.want {
				t.Errorf("HasDirectionalSyntax(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestParse_SimpleDirective(t *testing.T) {
	directives := Parse("analyze trends\ncode_agent > testing_agent: run unit tests")

	if len(directives) != 1 {
		t.Fatalf("parsed %d directives, want 1", len(directives))
	}
	d := directives[0]
	if d.Source != "code_agent" {
		t.Errorf("Source = %q, want code_agent", d.Source)
	}
	if !reflect.DeepEqual(d.Targets, []string{"testing_agent"}) {
		t.Errorf("Targets = %v, want [testing_agent]", d.Targets)
	}
	if d.Payload != "run unit tests" {
		t.Errorf("Payload = %q, want %q", d.Payload, "run unit tests")
	}
	if d.Params != nil {
		t.Errorf("Params = %v, want nil", d.Params)
	}
}

func TestParse_BracketedTargets(t *testing.T) {
	directives := Parse("lead > [search_agent, code_agent, docs_agent]: gather context")

	if len(directives) != 1 {
		t.Fatalf("parsed %d directives, want 1", len(directives))
	}
	want := []string{"search_agent", "code_agent", "docs_agent"}
	if !reflect.DeepEqual(directives[0].Targets, want) {
		t.Errorf("Targets = %v, want %v", directives[0].Targets, want)
	}
}

func TestParse_Params(t *testing.T) {
	directives := Parse("lead > testing_agent (priority=critical, ack=true, retries=3, tag=smoke): verify build")

	if len(directives) != 1 {
		t.Fatalf("parsed %d directives, want 1", len(directives))
	}
	params := directives[0].Params

	if got, ok := params["priority"].(string); !ok || got != "critical" {
		t.Errorf("priority = %v (%T), want string critical", params["priority"], params["priority"])
	}
	if got, ok := params["ack"].(bool); !ok || !got {
		t.Errorf("ack = %v (%T), want bool true", params["ack"], params["ack"])
	}
	if got, ok := params["retries"].(int); !ok || got != 3 {
		t.Errorf("retries = %v (%T), want int 3", params["retries"], params["retries"])
	}
	if got, ok := params["tag"].(string); !ok || got != "smoke" {
		t.Errorf("tag = %v (%T), want string smoke", params["tag"], params["tag"])
	}
	if directives[0].Payload != "verify build" {
		t.Errorf("Payload = %q, want %q", directives[0].Payload, "verify build")
	}
}

func TestParse_MultipleLines(t *testing.T) {
	text := "summarize findings\n" +
		"search_agent > analysis_agent: here are the raw results\n" +
		"analysis_agent > [docs_agent, code_agent] (priority=high): draft and verify\n" +
		"trailing note"

	directives := Parse(text)
	if len(directives) != 2 {
		t.Fatalf("parsed %d directives, want 2", len(directives))
	}
	if directives[0].Source != "search_agent" {
		t.Errorf("first source = %q", directives[0].Source)
	}
	if len(directives[1].Targets) != 2 {
		t.Errorf("second targets = %v", directives[1].Targets)
	}
}

func TestExtractBaseQuery(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			"directive removed",
			"analyze trends\ncode_agent > testing_agent: run unit tests",
			"analyze trends",
		},
		{
			"no directives",
			"just a plain query",
			"just a plain query",
		},
		{
			"only directives",
			"a > b: message",
			"",
		},
		{
			"interleaved",
			"first line\na > b: message\nsecond line",
			"first line\nsecond line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractBaseQuery(tt.text); got != tt.want {
				t.Errorf("ExtractBaseQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	known := []string{"code_agent", "testing_agent"}
	directives := Parse(
		"code_agent > testing_agent: ok\n" +
			"ghost_agent > [testing_agent, phantom_agent]: who\n" +
			"ghost_agent > code_agent: dedup check",
	)

	unknown := Validate(directives, known)
	want := []string{"ghost_agent", "phantom_agent"}
	if !reflect.DeepEqual(unknown, want) {
		t.Errorf("Validate() = %v, want %v", unknown, want)
	}
}

func TestValidate_AllKnown(t *testing.T) {
	directives := Parse("code_agent > testing_agent: ok")
	if unknown := Validate(directives, []string{"code_agent", "testing_agent"}); len(unknown) != 0 {
		t.Errorf("Validate() = %v, want empty", unknown)
	}
}
