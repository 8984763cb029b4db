// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// Only the two endpoints the chat client needs are covered: model listing
// (/api/tags) and streaming chat completion (/api/chat).
//
// # Key Types
//
//   - Client: stateless HTTP client, safe for concurrent use
//   - Message: chat message with role and content
//   - Stream: cancellable, lazily read sequence of content fragments
//   - TransportError: the single terminal failure of a request
//
// # Usage
//
// Pull fragments one at a time:
//
//	stream, err := client.ChatStream(ctx, model, history)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for {
//	    fragment, err := stream.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(fragment)
//	}
//
// Or hand the stream to a select loop:
//
//	for f := range stream.Fragments(ctx) {
//	    if f.Err != nil {
//	        return f.Err
//	    }
//	    render(f.Content)
//	}
//
// # Cancellation
//
// Cancelling the context passed to ChatStream, or calling Stream.Close,
// aborts the HTTP request. Next then reports a TransportError of type
// ErrTypeCanceled that unwraps to context.Canceled.
package ollama
