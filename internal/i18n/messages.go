// Package i18n holds the user-facing message table and picks a language per request.
package i18n

import (
	"golang.org/x/text/language"
)

// Key identifies a user-facing message.
type Key string

const (
	MsgInvalidRequest    Key = "invalid_request"
	MsgValidationFailed  Key = "validation_failed"
	MsgProductNotFound   Key = "product_not_found"
	MsgCategoryNotFound  Key = "category_not_found"
	MsgSupplierNotFound  Key = "supplier_not_found"
	MsgAlreadyExists     Key = "already_exists"
	MsgInsufficientStock Key = "insufficient_stock"
	MsgLockTimeout       Key = "lock_timeout"
	MsgMovementRecorded  Key = "movement_recorded"
	MsgInternalError     Key = "internal_error"
	MsgInvalidImage      Key = "invalid_image"
	MsgBodyTooLarge      Key = "body_too_large"
)

var (
	thai    = language.Thai
	english = language.English
)

// messages is keyed by message then language. Every key must carry both languages.
var messages = map[Key]map[language.Tag]string{
	MsgInvalidRequest: {
		thai:    "รูปแบบข้อมูลที่ส่งมาไม่ถูกต้อง",
		english: "invalid request body",
	},
	MsgValidationFailed: {
		thai:    "ข้อมูลไม่ถูกต้อง",
		english: "validation failed",
	},
	MsgProductNotFound: {
		thai:    "Product not found",
		english: "Product not found",
	},
	MsgCategoryNotFound: {
		thai:    "ไม่พบหมวดหมู่",
		english: "Category not found",
	},
	MsgSupplierNotFound: {
		thai:    "ไม่พบผู้จำหน่าย",
		english: "Supplier not found",
	},
	MsgAlreadyExists: {
		thai:    "ข้อมูลนี้มีอยู่แล้ว",
		english: "Resource already exists",
	},
	MsgInsufficientStock: {
		thai:    "สินค้าในสต็อกไม่เพียงพอต่อการเบิกออก",
		english: "Insufficient stock to withdraw",
	},
	MsgLockTimeout: {
		thai:    "สินค้านี้กำลังถูกทำรายการอยู่ กรุณาลองใหม่อีกครั้ง",
		english: "Product is being updated by another request, please retry",
	},
	MsgMovementRecorded: {
		thai:    "บันทึกรายการสต็อกสำเร็จ",
		english: "Stock transaction recorded",
	},
	MsgInternalError: {
		thai:    "Internal Server Error",
		english: "Internal Server Error",
	},
	MsgInvalidImage: {
		thai:    "ไฟล์รูปภาพไม่ถูกต้อง",
		english: "invalid image",
	},
	MsgBodyTooLarge: {
		thai:    "ข้อมูลที่ส่งมามีขนาดใหญ่เกินกำหนด",
		english: "request body too large",
	},
}

// Catalog resolves messages for a request's Accept-Language header.
type Catalog struct {
	supported []language.Tag
	matcher   language.Matcher
}

// NewCatalog builds a catalog whose fallback language is defaultLang (Thai when unparseable
// or unsupported).
func NewCatalog(defaultLang string) *Catalog {
	fallback := thai
	if tag, err := language.Parse(defaultLang); err == nil && tag.String() == english.String() {
		fallback = english
	}

	supported := []language.Tag{fallback}
	for _, tag := range []language.Tag{thai, english} {
		if tag != fallback {
			supported = append(supported, tag)
		}
	}

	return &Catalog{
		supported: supported,
		matcher:   language.NewMatcher(supported),
	}
}

// Language picks the best supported language for an Accept-Language header value.
func (c *Catalog) Language(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return c.supported[0]
	}
	_, index, confidence := c.matcher.Match(tags...)
	if confidence == language.No {
		return c.supported[0]
	}
	return c.supported[index]
}

// Message returns the text for key in the language best matching acceptLanguage.
func (c *Catalog) Message(acceptLanguage string, key Key) string {
	byLang, ok := messages[key]
	if !ok {
		return string(key)
	}
	if text, ok := byLang[c.Language(acceptLanguage)]; ok {
		return text
	}
	return byLang[c.supported[0]]
}
