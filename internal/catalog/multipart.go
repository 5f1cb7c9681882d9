package catalog

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"
)

const (
	fieldSKU            = "sku"
	fieldName           = "name"
	fieldPrice          = "price"
	fieldExistingImages = "existingImages"
	fieldImages         = "images"
)

// encodeForm writes the product form as multipart/form-data. Each kept image URL becomes one
// existingImages field and each upload one images file part, in order.
func encodeForm(form ProductForm) (body *bytes.Buffer, contentType string, err error) {
	body = &bytes.Buffer{}
	w := multipart.NewWriter(body)

	fields := []struct{ key, value string }{
		{fieldSKU, form.SKU},
		{fieldName, form.Name},
		{fieldPrice, form.Price},
	}
	for _, f := range fields {
		if err := w.WriteField(f.key, f.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.key, err)
		}
	}
	for _, u := range form.ExistingImages {
		if err := w.WriteField(fieldExistingImages, u); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", fieldExistingImages, err)
		}
	}
	for _, img := range form.Images {
		part, err := w.CreatePart(imageHeader(img))
		if err != nil {
			return nil, "", fmt.Errorf("create part for %s: %w", img.Filename, err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", fmt.Errorf("write part for %s: %w", img.Filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return body, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func imageHeader(img Upload) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		fieldImages, quoteEscaper.Replace(img.Filename)))
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	return h
}
