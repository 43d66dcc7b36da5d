// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package proxyhttp

import (
	"errors"
	"net/http"

	"github.com/clickproxy/clickproxy/internal/chclient"
	"github.com/clickproxy/clickproxy/internal/compile"
	"github.com/clickproxy/clickproxy/internal/declarative"
	"github.com/clickproxy/clickproxy/internal/ir"
)

// writeError maps a decoding/compilation error to its HTTP status (spec
// §7 Input/decoding): evaluator failures, structural-decode failures,
// SQL parse failures, and the exactly-one-query rule are all 400s.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var multi *compile.MultipleQueriesError
	var evalErr *declarative.EvalError
	var decodeErr *ir.DecodeError
	switch {
	case errors.As(err, &multi), errors.As(err, &evalErr), errors.As(err, &decodeErr):
		h.badRequest(w, "%s", err)
	default:
		h.badRequest(w, "%s", err)
	}
}

// writeUpstreamError maps an upstream-call failure (spec §7 Upstream
// failure) to a 5xx: a non-success response, a ping mismatch, or a
// plain connection failure are all reported as Bad Gateway so the
// client can distinguish "your query was wrong" (400) from "the
// database couldn't be reached or errored" (502).
func (h *Handler) writeUpstreamError(w http.ResponseWriter, err error) {
	var upErr *chclient.UpstreamError
	if errors.As(err, &upErr) {
		http.Error(w, upErr.Body, http.StatusBadGateway)
		h.logf("502: upstream status %d: %s", upErr.Status, upErr.Body)
		return
	}
	http.Error(w, err.Error(), http.StatusBadGateway)
	h.logf("502: %s", err)
}
