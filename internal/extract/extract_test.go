package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-range-crawler/internal/crawler"
)

const titlePage = `<html><body>
<nav><h3 class="text-2xl font-bold"><a class="link link-hover" href="/nav">Navigation</a></h3></nav>
<main>
  <div>
    <h3 class="text-2xl font-bold"><a class="link link-hover" href="/title/42">  Blue Lock  </a></h3>
    <h3 class="text-2xl font-bold"><a class="link link-hover" href="/title/43">Second</a></h3>
  </div>
</main>
</body></html>`

func TestExtract(t *testing.T) {
	t.Parallel()

	ext, err := New(DefaultSelectors())
	require.NoError(t, err)

	testCases := []struct {
		name string
		body string
		want crawler.Extraction
	}{
		{"title found inside main", titlePage, crawler.Found("Blue Lock")},
		{"no main region", `<html><body><h3 class="text-2xl font-bold"><a class="link link-hover" href="/x">T</a></h3></body></html>`, crawler.NotFound()},
		{"heading missing class", `<main><h3 class="text-2xl"><a class="link link-hover" href="/x">T</a></h3></main>`, crawler.NotFound()},
		{"link without href", `<main><h3 class="text-2xl font-bold"><a class="link link-hover">T</a></h3></main>`, crawler.NotFound()},
		{"blank title", `<main><h3 class="text-2xl font-bold"><a class="link link-hover" href="/x">   </a></h3></main>`, crawler.Found("")},
		{"empty link", `<main><h3 class="text-2xl font-bold"><a class="link link-hover" href="/x"></a></h3></main>`, crawler.Found("")},
		{"empty body", ``, crawler.NotFound()},
		{"not html", `{"error":"not found"}`, crawler.NotFound()},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ext.Extract([]byte(tc.body)))
		})
	}
}

func TestNewDefaultsEmptySelectors(t *testing.T) {
	t.Parallel()

	ext, err := New(Selectors{})
	require.NoError(t, err)
	require.Equal(t, crawler.Found("Blue Lock"), ext.Extract([]byte(titlePage)))
}

func TestNewCustomSelectors(t *testing.T) {
	t.Parallel()

	ext, err := New(Selectors{Region: "article", Heading: "h1", Link: "span.name"})
	require.NoError(t, err)
	got := ext.Extract([]byte(`<article><h1><span class="name">Custom</span></h1></article>`))
	require.Equal(t, crawler.Found("Custom"), got)
}

func TestNewRejectsInvalidSelector(t *testing.T) {
	t.Parallel()

	_, err := New(Selectors{Heading: "h3[["})
	require.ErrorContains(t, err, "heading selector")
}

func TestExtractFirstMatchOnly(t *testing.T) {
	t.Parallel()

	ext, err := New(DefaultSelectors())
	require.NoError(t, err)
	body := `<main><p>intro</p></main><main><h3 class="text-2xl font-bold"><a class="link link-hover" href="/x">Later</a></h3></main>`
	require.Equal(t, crawler.NotFound(), ext.Extract([]byte(body)))
}
