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

	"github.com/sage-x-project/audioslice/keyexchange"
	"github.com/sage-x-project/audioslice/transport"
	"github.com/sage-x-project/audioslice/transport/httpclient"
)

var createSessionCmd = &cobra.Command{
	Use:   "create-session <audio-file>",
	Short: "Upload an audio file and complete key exchange",
	Args:  cobra.ExactArgs(1),
	RunE:  runCreateSession,
}

func init() {
	rootCmd.AddCommand(createSessionCmd)
}

func runCreateSession(cmd *cobra.Command, args []string) error {
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

	fmt.Printf("sessionId: %s\n", sessionID)
	fmt.Printf("totalSlices: %d\n", info.TotalSlices)
	fmt.Printf("sessionKey: %x\n", sessionKey)
	return nil
}
