package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"songreel/internal/queue"
)

func newSongCommand(ctx *commandContext) *cobra.Command {
	songCmd := &cobra.Command{
		Use:   "song",
		Short: "Manage the song backlog",
	}
	songCmd.AddCommand(newSongAddCommand(ctx))
	songCmd.AddCommand(newSongListCommand(ctx))
	return songCmd
}

func newSongAddCommand(ctx *commandContext) *cobra.Command {
	var (
		artist, audioURL, genre, mood, style   string
		description, negativePrompt, reference string
		duration                               float64
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Add a song to the backlog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.TrimSpace(args[0])
			if title == "" {
				return fmt.Errorf("song title is required")
			}
			if strings.TrimSpace(audioURL) == "" {
				return fmt.Errorf("--audio-url is required")
			}

			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			song, err := store.AddSong(cmd.Context(), queue.Song{
				Title:           title,
				Artist:          artist,
				AudioURL:        audioURL,
				Genre:           genre,
				Mood:            mood,
				Style:           style,
				Description:     description,
				NegativePrompt:  negativePrompt,
				ReferenceImage:  reference,
				DurationSeconds: duration,
			})
			if err != nil {
				return err
			}
			cmd.Printf("added song %d: %s\n", song.ID, song.Title)
			return nil
		},
	}
	cmd.Flags().StringVar(&artist, "artist", "", "Artist name")
	cmd.Flags().StringVar(&audioURL, "audio-url", "", "URL of the song's audio track")
	cmd.Flags().StringVar(&genre, "genre", "", "Genre hint for script generation")
	cmd.Flags().StringVar(&mood, "mood", "", "Mood hint for script generation")
	cmd.Flags().StringVar(&style, "style", "", "Visual style hint")
	cmd.Flags().StringVar(&description, "description", "", "Free-form description of the song")
	cmd.Flags().StringVar(&negativePrompt, "negative-prompt", "", "Override the negative prompt for video generation")
	cmd.Flags().StringVar(&reference, "reference-image", "", "Override the character reference image URL")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Song duration in seconds")
	return cmd
}

func newSongListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List songs and their video status",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			songs, err := store.ListSongs(cmd.Context())
			if err != nil {
				return err
			}
			if len(songs) == 0 {
				cmd.Println("no songs")
				return nil
			}

			rows := make([][]string, 0, len(songs))
			for _, song := range songs {
				video := "-"
				if song.HasVideo() {
					video = song.VideoURL
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", song.ID),
					song.Title,
					song.Artist,
					video,
				})
			}
			cmd.Println(renderTable([]string{"ID", "TITLE", "ARTIST", "VIDEO"}, rows, 0))
			return nil
		},
	}
}
