package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/cloudzz-dev/speakly/internal/client/music"
	"github.com/cloudzz-dev/speakly/internal/models"
)

var errNoCatalog = errors.New("music search is not configured")

type tracksMsg struct {
	term   string
	tracks []models.Track
	err    error
}

type musicView struct {
	catalog  TrackSearcher
	player   *music.Player
	playlist *music.Playlist
	search   textinput.Model

	term       string
	results    []models.Track
	selected   int
	onPlaylist bool
	searching  bool
}

func newMusicView(catalog TrackSearcher, player *music.Player) musicView {
	in := textinput.New()
	in.Placeholder = "Search music..."
	in.CharLimit = 64
	in.Width = 40
	return musicView{catalog: catalog, player: player, playlist: &music.Playlist{}, search: in}
}

func (v *musicView) focus(on bool) {
	if on {
		v.search.Focus()
	} else {
		v.search.Blur()
	}
}

func (v *musicView) tracks() []models.Track {
	if v.onPlaylist {
		return v.playlist.Tracks()
	}
	return v.results
}

func (v *musicView) current() (models.Track, bool) {
	tracks := v.tracks()
	if v.selected < 0 || v.selected >= len(tracks) {
		return models.Track{}, false
	}
	return tracks[v.selected], true
}

func (v *musicView) update(m *Model, msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tracksMsg:
		v.searching = false
		if msg.err != nil {
			return m.report("", msg.err)
		}
		v.term = msg.term
		v.results = msg.tracks
		v.selected = 0
		v.onPlaylist = false
		if len(msg.tracks) == 0 {
			return m.notify("Nothing found", false)
		}
		return nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up":
			if v.selected > 0 {
				v.selected--
			}
			return nil
		case "down":
			if v.selected < len(v.tracks())-1 {
				v.selected++
			}
			return nil
		case "ctrl+l":
			v.onPlaylist = !v.onPlaylist
			v.selected = 0
			return nil
		case "ctrl+a":
			if t, ok := v.current(); ok && !v.onPlaylist {
				if v.playlist.Add(t) {
					return m.notify("Added "+t.Name+" to playlist", false)
				}
				return m.notify("Already in playlist", true)
			}
			return nil
		case "ctrl+d":
			if t, ok := v.current(); ok && v.onPlaylist {
				v.playlist.Remove(t.ID)
				if v.selected >= v.playlist.Len() && v.selected > 0 {
					v.selected--
				}
			}
			return nil
		case "ctrl+p":
			if err := v.player.Toggle(); err != nil {
				return m.report("", err)
			}
			return nil
		case "ctrl+s":
			v.player.Stop()
			return nil
		case "enter":
			term := strings.TrimSpace(v.search.Value())
			if term != "" && term != v.term {
				return v.runSearch(m, term)
			}
			if t, ok := v.current(); ok {
				if err := v.player.Play(t); err != nil {
					return m.report("", err)
				}
				return m.notify("▶ "+t.Name+" – "+t.Artist, false)
			}
			return nil
		}
	}
	var cmd tea.Cmd
	v.search, cmd = v.search.Update(msg)
	return cmd
}

func (v *musicView) runSearch(m *Model, term string) tea.Cmd {
	if v.catalog == nil {
		return m.report("", errNoCatalog)
	}
	v.searching = true
	catalog, ctx := v.catalog, m.ctx
	return func() tea.Msg {
		tracks, err := catalog.Search(ctx, term)
		return tracksMsg{term: term, tracks: tracks, err: err}
	}
}

func (v musicView) view() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("🎵 Music") + "\n\n")
	s.WriteString("  " + v.search.View() + "\n")
	if v.searching {
		s.WriteString(mutedStyle.Render("  Searching...") + "\n")
	}
	s.WriteString("\n")

	resultsTitle, playlistTitle := "Results", fmt.Sprintf("My playlist (%d)", v.playlist.Len())
	if v.onPlaylist {
		s.WriteString(mutedStyle.Render("  "+resultsTitle) + "   " + selectedStyle.Render(playlistTitle) + "\n\n")
	} else {
		s.WriteString(selectedStyle.Render("  "+resultsTitle) + "   " + mutedStyle.Render(playlistTitle) + "\n\n")
	}

	tracks := v.tracks()
	if len(tracks) == 0 {
		if v.onPlaylist {
			s.WriteString(mutedStyle.Render("  Playlist is empty.\n"))
		} else {
			s.WriteString(mutedStyle.Render("  Search for a song to get started.\n"))
		}
	}
	playing := v.player.Current()
	for i, t := range tracks {
		icon := "♪"
		if playing != nil && playing.ID == t.ID {
			icon = "▶"
			if v.player.State() == music.Paused {
				icon = "⏸"
			}
		}
		line := fmt.Sprintf("%s %s %s", t.Name, mutedStyle.Render(t.Artist), mutedStyle.Render(music.FormatDuration(t.Duration)))
		s.WriteString(listLine(i == v.selected, icon, line))
	}

	if playing != nil {
		s.WriteString("\n  " + okStyle.Render(fmt.Sprintf("%s: %s – %s", v.player.State(), playing.Name, playing.Artist)) + "\n")
	}
	s.WriteString("\n" + helpStyle.Render("  Enter search/play • Ctrl+A add • Ctrl+D remove • Ctrl+L playlist • Ctrl+P pause • Ctrl+S stop"))
	return s.String()
}
