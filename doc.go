// Package bbody ingests HTTP request bodies with bounded memory and serves responses from a spool.
//
// # Overview
//
// bbody combines three things: request bodies that can be buffered and read again, decoding of urlencoded and
// multipart forms under strict limits, and handlers that return errors while writing to a spooled response writer
// that can be replaced completely when an error occurs.
//
// A minimal example:
//
//	mux := bbody.NewServeMux()
//	mux.HandleFunc("POST /items", func(ctx context.Context, w bbody.ResponseWriter, r *http.Request) error {
//	    f, err := bbody.ReadForm(ctx, r, bbody.DefaultOptions())
//	    if err != nil {
//	        return err // limit violations become a 413, malformed bodies a 400
//	    }
//	    defer f.Close()
//
//	    return json.NewEncoder(w).Encode(f.Values)
//	})
//
// # Spooling
//
// Bodies are held in pooled memory pages (package paged) until a memory threshold would be exceeded, the rest
// overflows to a private temporary file (package spool). A hard buffer limit caps memory plus disk, exceeding it
// releases all resources and fails with an error that matches [bodyerr.ErrBufferLimitExceeded].
//
// [BufferBody] and the [EnableBuffering] middleware replace the request body with a [BufferedBody] that can be
// rewound with [Rewind] any number of times. The middleware deletes the buffers after the request.
//
// # Forms
//
// [ReadForm] decodes application/x-www-form-urlencoded bodies with package form and multipart/form-data bodies with
// package multipart. Both accept input in arbitrary chunks. File sections are not copied, a [FormFile] reads its
// content back from the buffered request body.
//
// [Options] carries every limit. The defaults allow 1024 form values, keys of 2048 bytes, values of 4 MiB, 16
// headers per multipart section and 128 MiB per section body.
//
// # Error Handling
//
// When a handler returns an error the response buffer is reset and an error response is rendered:
//
//   - [*Error] (created with [NewError]): uses the error's code and message
//   - body ingestion failures: 413 for limits, 400 for malformed input and 415 for unsupported content types, with
//     a stable message
//   - other errors: logged and converted to 500 Internal Server Error
//
// [CodeOf] exposes this mapping for use in middleware.
//
// # Middleware
//
// The [Middleware] type operates on [BareHandler], which lacks the typed context:
//
//	mux := bbody.NewServeMux()
//	mux.Use(bbody.EnableBuffering(bbody.DefaultOptions(), mux.Logger()))
//
// # Typed Context
//
// For request-scoped typed data use [NewCustomServeMux] with a custom context type and initializer:
//
//	mux := bbody.NewCustomServeMux(initContext, -1, logger, http.NewServeMux())
//
// The conversion chain is:
//
//	Handler[C] → BareHandler → http.Handler
//
// [ToBare] applies the context initializer, [ToStd] wraps with response spooling and error handling.
package bbody
