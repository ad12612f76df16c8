package controller

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "failpass.dev/pkg/failpass/internal/model"
)

func TestTUI_ShortOutputIsPrinted(t *testing.T) {
	var out bytes.Buffer

	tui := newBufferedTUI(&out, 40)
	tui.run = func(context.Context, tea.Model) error {
		t.Fatal("pager should not start")
		return nil
	}

	tui.DisplayText(context.Background(), "hello\n")
	assert.Empty(t, out.String())

	require.NoError(t, tui.Close(context.Background()))
	assert.Equal(t, "hello\n", out.String())
}

func TestTUI_LongOutputIsPaged(t *testing.T) {
	var (
		out   bytes.Buffer
		paged tea.Model
	)

	tui := newBufferedTUI(&out, 5)
	tui.run = func(_ context.Context, model tea.Model) error {
		paged = model
		return nil
	}

	records := make([]m.AttemptRecord, 10)
	for i := range records {
		records[i] = m.AttemptRecord{Index: i, Outcome: m.OutcomeCompileFailed}
	}

	require.NoError(t, tui.DisplayAttempts(context.Background(), "runs/a__b-1/mock", records))
	require.NoError(t, tui.Close(context.Background()))

	assert.Empty(t, out.String())
	require.IsType(t, pagerModel{}, paged)
	assert.Contains(t, paged.(pagerModel).content, "runs/a__b-1/mock")
}

func TestTUI_PagerError(t *testing.T) {
	tui := newBufferedTUI(&bytes.Buffer{}, 3)
	tui.run = func(context.Context, tea.Model) error {
		return errors.New("no tty")
	}

	tui.DisplayText(context.Background(), strings.Repeat("line\n", 10))

	err := tui.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no tty")
}

func TestPagerModel(t *testing.T) {
	content := strings.Repeat("row\n", 50) + "last row"
	model := newPagerModel("failpass", content)

	assert.Equal(t, "Loading...", model.View())
	assert.Nil(t, model.Init())

	updated, cmd := model.Update(tea.WindowSizeMsg{Width: 80, Height: 12})
	assert.Nil(t, cmd)

	pm := updated.(pagerModel)
	require.True(t, pm.ready)
	assert.Equal(t, 10, pm.viewport.Height)
	assert.Contains(t, pm.View(), "failpass")
	assert.NotContains(t, pm.View(), "last row")

	updated, _ = pm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'G'}})
	pm = updated.(pagerModel)
	assert.Contains(t, pm.View(), "last row")
	assert.Contains(t, pm.View(), "100%")

	updated, _ = pm.Update(tea.WindowSizeMsg{Width: 40, Height: 6})
	pm = updated.(pagerModel)
	assert.Equal(t, 4, pm.viewport.Height)

	_, cmd = pm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
