package jsbind_test

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scalpel-domcore/internal/browser/jsbind"
	"github.com/xkilldash9x/scalpel-domcore/internal/browser/layout"
)

func TestDocument_Lookups(t *testing.T) {
	tr := setupRealm(t, variantsHTML, jsbind.Options{})

	assert.Equal(t, "HTML", tr.run(`document.documentElement.tagName`).String())
	assert.Equal(t, "BODY", tr.run(`document.body.tagName`).String())
	assert.Equal(t, "HEAD", tr.run(`document.head.tagName`).String())
	assert.True(t, tr.run(`document.head instanceof HTMLHeadElement`).ToBoolean())

	assert.Equal(t, "IMG", tr.run(`document.getElementById("i").tagName`).String())
	assert.True(t, goja.IsNull(tr.run(`document.getElementById("nope")`)))

	assert.Equal(t, int64(1), tr.run(`document.getElementsByTagName("img").length`).ToInteger())
	assert.Equal(t, "DIV,IMG,SPAN",
		tr.run(`document.queryXPath("//body/*").map(e => e.tagName).join()`).String())
	// Text nodes matched by an expression are skipped.
	assert.Equal(t, int64(0), tr.run(`document.queryXPath("//div/text()").length`).ToInteger())

	// No identity map: every lookup yields a fresh wrapper.
	assert.False(t, tr.run(`document.body === document.body`).ToBoolean())

	ex := tr.runErr(`document.queryXPath("//[")`)
	assert.Contains(t, ex.Error(), "SyntaxError")
}

func TestDocument_CreateAndAppend(t *testing.T) {
	tr := setupRealm(t, variantsHTML, jsbind.Options{})
	tr.layout.On("QueryContentBox", mock.Anything, mock.Anything).Return(layout.Rect{Width: 77}, nil)

	v := tr.run(`
		const img = document.createElement("IMG");
		img.setAttribute("id", "fresh");
		img.width = 77;
		document.body.appendChild(img);
		[img instanceof HTMLImageElement, img.width, document.getElementById("fresh").getAttribute("width")]
	`)
	got := v.Export().([]interface{})
	assert.Equal(t, true, got[0])
	assert.EqualValues(t, 77, got[1])
	assert.Equal(t, "77", got[2])

	ex := tr.runErr(`document.createElement("bad name")`)
	assert.Contains(t, ex.Error(), "InvalidCharacterError")

	ex = tr.runErr(`document.body.appendChild({})`)
	assert.Contains(t, ex.Error(), "TypeError")

	ex = tr.runErr(`const b = document.body; b.appendChild(document.documentElement)`)
	assert.Contains(t, ex.Error(), "HierarchyRequestError")

	s := tr.realm.Stats()
	require.Positive(t, s.Created)
	assert.Equal(t, s.Created-s.Finalized, s.Live)
}
