package envgraph

import "testing"

func TestRenderExportsQuoteStyles(t *testing.T) {
	bindings := []Binding{
		{Name: "A", Value: "bare", Quote: QuoteNone},
		{Name: "B", Value: "two words", Quote: QuoteDouble},
		{Name: "C", Value: "literal $HOME", Quote: QuoteSingle},
	}
	got := RenderExports(bindings)
	want := "export A=bare\nexport B=\"two words\"\nexport C='literal $HOME'\n"
	if got != want {
		t.Errorf("RenderExports = %q, want %q", got, want)
	}
}

func TestRenderExportsRequotesBareValueThatNeedsIt(t *testing.T) {
	bindings := []Binding{{Name: "A", Value: "two words", Quote: QuoteNone}}
	got := RenderExports(bindings)
	if got != "export A=\"two words\"\n" {
		t.Errorf("RenderExports = %q, want a re-quoted value", got)
	}
}

func TestBuildOrdersAlphabeticallyByName(t *testing.T) {
	dir := t.TempDir()
	leaf := writeFile(t, dir, "leaf.env", "export Z=1\nexport A=2\nexport M=3\n")
	g, err := Load(leaf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	built := g.Build()
	if len(built) != 3 || built[0].Name != "A" || built[1].Name != "M" || built[2].Name != "Z" {
		t.Errorf("Build() = %+v, want alphabetical A, M, Z", built)
	}
}
