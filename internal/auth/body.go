package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"net/url"
	"slices"
)

// Form is an already-encoded form payload. It is sent unchanged with its own content type,
// never JSON encoded.
type Form struct {
	ContentType string
	Data        []byte
}

// URLEncodedForm encodes values as application/x-www-form-urlencoded.
func URLEncodedForm(values url.Values) Form {
	return Form{
		ContentType: "application/x-www-form-urlencoded",
		Data:        []byte(values.Encode()),
	}
}

// FormFile is a file part of a multipart form.
type FormFile struct {
	Field    string
	Filename string
	Content  io.Reader
}

// MultipartForm encodes fields and files as multipart/form-data. Fields are written in name order.
func MultipartForm(fields map[string]string, files ...FormFile) (Form, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if err := w.WriteField(name, fields[name]); err != nil {
			return Form{}, fmt.Errorf("writing field %s: %w", name, err)
		}
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Filename)
		if err != nil {
			return Form{}, fmt.Errorf("creating part %s: %w", f.Field, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return Form{}, fmt.Errorf("writing part %s: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return Form{}, err
	}

	return Form{ContentType: w.FormDataContentType(), Data: buf.Bytes()}, nil
}

// encodedBody is a request body buffered once so the retry after a refresh can resend it.
type encodedBody struct {
	data        []byte
	contentType string
	// json is set when the body should carry the JSON content type
	json bool
	// structured bodies were encoded here, so their content type overrides the caller's
	structured bool
}

// encodeBody normalizes an Options.Body value.
//   - nil: no body
//   - Form, *Form: passed through with the form's content type
//   - []byte, string, io.Reader: sent as-is, JSON content type unless the caller set one
//   - anything else: JSON encoded
func encodeBody(body any) (*encodedBody, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case Form:
		return &encodedBody{data: b.Data, contentType: b.ContentType}, nil
	case *Form:
		if b == nil {
			return nil, nil
		}
		return &encodedBody{data: b.Data, contentType: b.ContentType}, nil
	case []byte:
		return &encodedBody{data: b, json: true}, nil
	case string:
		return &encodedBody{data: []byte(b), json: true}, nil
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return nil, fmt.Errorf("reading request body: %w", err)
		}
		return &encodedBody{data: data, json: true}, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		return &encodedBody{data: data, json: true, structured: true}, nil
	}
}
