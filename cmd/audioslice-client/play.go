// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/audioslice/consumer"
	"github.com/sage-x-project/audioslice/keyexchange"
	"github.com/sage-x-project/audioslice/transport"
	"github.com/sage-x-project/audioslice/transport/httpclient"
)

var (
	bufferKind   string
	prefetchKind string
)

var playCmd = &cobra.Command{
	Use:   "play <audio-file>",
	Short: "Create a session and stream its slices end to end",
	Long: `play uploads the given file to the configured server, completes key
exchange, then drives the SliceLoader and PlaybackController through every
slice in order, printing each slice's decoded frame count as it plays.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&bufferKind, "buffer", string(consumer.BufferBalanced), "buffer strategy: conservative|balanced|aggressive")
	playCmd.Flags().StringVar(&prefetchKind, "prefetch", string(consumer.PrefetchLinear), "prefetch strategy: linear|adaptive|none")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	audioData, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	client := httpclient.New(serverAddr)

	sessionID, err := client.CreateSession(ctx, transport.CreateSessionRequest{AudioData: audioData})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	kex := keyexchange.New()
	if err := kex.Initialize(); err != nil {
		return fmt.Errorf("initialize key exchange: %w", err)
	}
	req, err := kex.CreateRequest(nil)
	if err != nil {
		return fmt.Errorf("build key exchange request: %w", err)
	}
	resp, info, err := client.PerformKeyExchange(ctx, sessionID, req, "")
	if err != nil {
		return fmt.Errorf("key exchange: %w", err)
	}
	sessionKey, err := kex.ProcessResponse(resp, sessionID)
	if err != nil {
		return fmt.Errorf("derive session key: %w", err)
	}

	cfg := consumer.DefaultConfig()
	loader := consumer.NewSliceLoader(client, cfg)

	trackID := info.ActiveTrackID
	trackInfo := transport.TrackInfo{
		SliceIDs:   info.SliceIDs,
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		BitDepth:   info.BitDepth,
		IsFloat32:  info.IsFloat32,
		Format:     info.Format,
	}
	for _, t := range info.Tracks {
		if t.TrackID == trackID {
			trackInfo = t
			break
		}
	}
	loader.Initialize(sessionID, trackID, sessionKey, trackInfo)

	buf := consumer.NewBufferStrategy(consumer.BufferKind(bufferKind))
	pre := consumer.NewPrefetchStrategy(consumer.PrefetchKind(prefetchKind), 0)
	controller := consumer.NewPlaybackController(loader, info.SliceIDs, buf, pre)

	loader.PrefetchSlices(ctx, 0, 3)

	for i, sliceID := range info.SliceIDs {
		if !loader.Has(i) {
			if _, err := loader.LoadSlice(ctx, sliceID, false); err != nil {
				return fmt.Errorf("load slice %s: %w", sliceID, err)
			}
		}
		slice, err := controller.Play()
		if err != nil {
			return fmt.Errorf("play slice %s: %w", sliceID, err)
		}
		fmt.Printf("slice %d/%d: %d frames\n", i+1, len(info.SliceIDs), slice.FrameCount())
		controller.AdvanceSlice()
	}
	return nil
}
