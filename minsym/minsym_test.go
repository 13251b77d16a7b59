package minsym

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testTable() *Table {
	// Deliberately unsorted input.
	return NewTable([]Sym{
		{Name: "puts", Addr: 0x5000, Kind: Trampoline, Section: ".plt"},
		{Name: "main", Addr: 0x1000, Kind: Text, Section: ".text"},
		{Name: "puts", Addr: 0x2000, Kind: Text, Section: ".text"},
		{Name: "counter", Addr: 0x3000, Kind: Data, Section: ".data"},
		{Name: "scratch", Addr: 0x3000, Kind: BSS, Section: ".bss"},
	})
}

func TestTableSortedByAddress(t *testing.T) {
	tbl := testTable()
	require.Equal(t, 5, tbl.Len())
	for i := 1; i < tbl.Len(); i++ {
		require.LessOrEqual(t, tbl.At(i-1).Addr, tbl.At(i).Addr)
	}
	// Equal addresses keep their input order.
	require.Equal(t, "counter", tbl.At(2).Name)
	require.Equal(t, "scratch", tbl.At(3).Name)
}

func TestByPC(t *testing.T) {
	tbl := testTable()

	require.Nil(t, tbl.ByPC(0xfff), "below the first symbol")

	ms := tbl.ByPC(0x1000)
	require.NotNil(t, ms)
	require.Equal(t, "main", ms.Name)

	ms = tbl.ByPC(0x1fff)
	require.NotNil(t, ms)
	require.Equal(t, "main", ms.Name)

	ms = tbl.ByPC(0x9999)
	require.NotNil(t, ms)
	require.Equal(t, "puts", ms.Name)
	require.Equal(t, Trampoline, ms.Kind)
}

func TestByPCSection(t *testing.T) {
	tbl := testTable()

	// Without a section filter the BSS entry is closest.
	ms := tbl.ByPC(0x3500)
	require.NotNil(t, ms)
	require.Equal(t, "scratch", ms.Name)

	// Restricting to .text walks back past the data symbols.
	ms = tbl.ByPCSection(0x3500, ".text")
	require.NotNil(t, ms)
	require.Equal(t, "puts", ms.Name)
	require.Equal(t, uint64(0x2000), ms.Addr)

	require.Nil(t, tbl.ByPCSection(0x3500, ".rodata"))
}

func TestByName(t *testing.T) {
	tbl := testTable()

	all := tbl.ByName("puts")
	require.Len(t, all, 2)
	require.Nil(t, tbl.ByName("nonesuch"))
}

func TestTextByNameSkipsTrampolines(t *testing.T) {
	tbl := testTable()

	ms := tbl.TextByName("puts")
	require.NotNil(t, ms)
	require.Equal(t, Text, ms.Kind)
	require.Equal(t, uint64(0x2000), ms.Addr)

	// A name known only as a stub has no real definition here.
	only := NewTable([]Sym{{Name: "gets", Addr: 0x5100, Kind: Trampoline, Section: ".plt"}})
	require.Nil(t, only.TextByName("gets"))
}

func TestKindPredicates(t *testing.T) {
	require.True(t, Data.DataLike())
	require.True(t, BSS.DataLike())
	require.True(t, Absolute.DataLike())
	require.True(t, FileData.DataLike())
	require.False(t, Text.DataLike())
	require.False(t, Trampoline.DataLike())

	require.True(t, Text.Code())
	require.True(t, FileText.Code())
	require.False(t, Trampoline.Code())
	require.False(t, Data.Code())
}

func TestNaturalName(t *testing.T) {
	s := Sym{Name: "_Z4blipv", Natural: "blip()"}
	require.Equal(t, "blip()", s.NaturalName())
	s.Natural = ""
	require.Equal(t, "_Z4blipv", s.NaturalName())
}
