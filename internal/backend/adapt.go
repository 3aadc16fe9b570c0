package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/thaitruongdao01-afk/saintpaul/internal/session"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/enums"
	pkgerrors "github.com/thaitruongdao01-afk/saintpaul/pkg/errors"
)

// Page is one page of list results. Items are passed through untouched.
type Page struct {
	Items []json.RawMessage `json:"items"`
	Total int               `json:"total"`
}

type object map[string]json.RawMessage

var (
	itemKeys  = []string{"items", "rows", "results", "records", "data"}
	totalKeys = []string{"total", "count", "totalItems", "total_items"}
	tokenKeys = []string{"token", "accessToken", "access_token"}
)

// adaptPage accepts a bare array, {items,total}, {rows,count},
// {data,pagination:{total}} and any of those wrapped in {success,data}.
func adaptPage(body []byte) (*Page, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, malformed("empty list response")
	}
	if body[0] == '[' {
		items, err := decodeItems(body)
		if err != nil {
			return nil, err
		}
		return &Page{Items: items, Total: len(items)}, nil
	}

	var obj object
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, malformed("list response is not JSON")
	}
	if err := checkSuccess(obj); err != nil {
		return nil, err
	}
	return pageFromObject(obj, 0)
}

func pageFromObject(obj object, depth int) (*Page, error) {
	total, hasTotal := findTotal(obj)

	for _, key := range itemKeys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		switch {
		case string(raw) == "null":
			if !hasTotal {
				total = 0
			}
			return &Page{Items: []json.RawMessage{}, Total: total}, nil
		case len(raw) > 0 && raw[0] == '[':
			items, err := decodeItems(raw)
			if err != nil {
				return nil, err
			}
			if !hasTotal {
				total = len(items)
			}
			return &Page{Items: items, Total: total}, nil
		case len(raw) > 0 && raw[0] == '{' && depth < 2:
			var inner object
			if err := json.Unmarshal(raw, &inner); err != nil {
				return nil, malformed("list payload is not an object")
			}
			page, err := pageFromObject(inner, depth+1)
			if err != nil {
				return nil, err
			}
			if hasTotal {
				page.Total = total
			}
			return page, nil
		}
	}
	return nil, malformed("list response carries no items")
}

func findTotal(obj object) (int, bool) {
	if n, ok := intField(obj, totalKeys...); ok {
		return n, true
	}
	for _, nested := range []string{"pagination", "meta"} {
		raw, ok := obj[nested]
		if !ok {
			continue
		}
		var inner object
		if json.Unmarshal(raw, &inner) != nil {
			continue
		}
		if n, ok := intField(inner, totalKeys...); ok {
			return n, true
		}
	}
	return 0, false
}

func decodeItems(raw []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, malformed("list items are not an array")
	}
	if items == nil {
		items = []json.RawMessage{}
	}
	return items, nil
}

// adaptLogin accepts the token at the top level or inside data, and the user
// either as data.user, top-level user or data itself.
func adaptLogin(body []byte) (*session.LoginResult, error) {
	var obj object
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, malformed("login response is not JSON")
	}
	if ok, known := successFlag(obj); known && !ok {
		msg := messageOf(obj)
		if msg == "" {
			msg = "invalid username or password"
		}
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, msg)
	}

	var data object
	if raw, ok := obj["data"]; ok {
		_ = json.Unmarshal(raw, &data)
	}

	token, _ := stringField(obj, tokenKeys...)
	if token == "" && data != nil {
		token, _ = stringField(data, tokenKeys...)
	}

	var userRaw json.RawMessage
	switch {
	case data != nil && data["user"] != nil:
		userRaw = data["user"]
	case obj["user"] != nil:
		userRaw = obj["user"]
	case data != nil:
		userRaw = obj["data"]
	}

	var user session.User
	if len(userRaw) > 0 {
		var wire wireUser
		if err := json.Unmarshal(userRaw, &wire); err != nil {
			return nil, malformed("login user is malformed")
		}
		user = wire.toUser()
	}

	if token == "" || !user.Valid() {
		return nil, malformed("login response is missing token or user")
	}
	return &session.LoginResult{Token: token, User: user}, nil
}

// adaptRecord unwraps {success,data} around a single record.
func adaptRecord(body []byte) (json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return json.RawMessage("null"), nil
	}
	var obj object
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, malformed("record response is not JSON")
	}
	if err := checkSuccess(obj); err != nil {
		return nil, err
	}
	if raw, ok := obj["data"]; ok {
		return raw, nil
	}
	return json.RawMessage(body), nil
}

type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexString(n.String())
	return nil
}

type wireUser struct {
	ID            flexString `json:"id"`
	Username      string     `json:"username"`
	FullName      string     `json:"full_name"`
	FullNameCamel string     `json:"fullName"`
	Email         string     `json:"email"`
	Role          string     `json:"role"`
	Permissions   []string   `json:"permissions"`
	CommunityID   flexString `json:"community_id"`
	CommunityIDC  flexString `json:"communityId"`
}

func (w wireUser) toUser() session.User {
	role := enums.Role(strings.ToLower(strings.TrimSpace(w.Role)))
	if parsed, err := enums.ParseRole(w.Role); err == nil {
		role = parsed
	}
	return session.User{
		ID:          strings.TrimSpace(string(w.ID)),
		Username:    w.Username,
		FullName:    firstNonEmpty(w.FullName, w.FullNameCamel),
		Email:       w.Email,
		Role:        role,
		Permissions: w.Permissions,
		CommunityID: firstNonEmpty(string(w.CommunityID), string(w.CommunityIDC)),
	}
}

func successFlag(obj object) (value, known bool) {
	raw, ok := obj["success"]
	if !ok {
		return false, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false
	}
	return b, true
}

// checkSuccess turns {success:false} into a retryable dependency failure.
func checkSuccess(obj object) error {
	if ok, known := successFlag(obj); known && !ok {
		msg := messageOf(obj)
		if msg == "" {
			msg = "backend reported failure"
		}
		return pkgerrors.New(pkgerrors.CodeDependency, msg)
	}
	return nil
}

func messageOf(obj object) string {
	if s, ok := stringField(obj, "message", "error"); ok {
		return s
	}
	if raw, ok := obj["error"]; ok {
		var inner object
		if json.Unmarshal(raw, &inner) == nil {
			s, _ := stringField(inner, "message")
			return s
		}
	}
	return ""
}

func extractMessage(body []byte) string {
	var obj object
	if json.Unmarshal(body, &obj) != nil {
		return ""
	}
	return messageOf(obj)
}

func stringField(obj object, keys ...string) (string, bool) {
	for _, k := range keys {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && strings.TrimSpace(s) != "" {
			return s, true
		}
	}
	return "", false
}

func intField(obj object, keys ...string) (int, bool) {
	for _, k := range keys {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		var n json.Number
		if json.Unmarshal(raw, &n) == nil {
			if v, err := strconv.Atoi(n.String()); err == nil && v >= 0 {
				return v, true
			}
			if f, err := n.Float64(); err == nil && f >= 0 {
				return int(f), true
			}
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v >= 0 {
				return v, true
			}
		}
	}
	return 0, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func malformed(msg string) error {
	return pkgerrors.New(pkgerrors.CodeDependency, msg)
}
