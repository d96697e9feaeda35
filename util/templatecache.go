package util

import (
	"container/list"
	"os"
	"strconv"
	"sync"

	"github.com/danursasmita/bengkel-ops/model"
	"gorm.io/gorm"
)

// LRU cache for template name -> (subject, body). Templates are edited
// rarely but read on every challenge issuance.
type templateEntry struct {
	name    string
	subject string
	body    string
}

type templateLRU struct {
	mu       sync.Mutex
	ll       *list.List
	cache    map[string]*list.Element
	capacity int
}

var templateCache *templateLRU

// InitTemplateCache initializes the LRU cache with given capacity.
// If capacity <= 0, a default of 100 is used.
func InitTemplateCache(capacity int) {
	if capacity <= 0 {
		capacity = 100
	}
	templateCache = &templateLRU{
		ll:       list.New(),
		cache:    make(map[string]*list.Element),
		capacity: capacity,
	}
}

// TemplateCacheGet returns subject, body and true if present in cache.
func TemplateCacheGet(name string) (string, string, bool) {
	if templateCache == nil {
		return "", "", false
	}
	templateCache.mu.Lock()
	defer templateCache.mu.Unlock()
	if ele, ok := templateCache.cache[name]; ok {
		templateCache.ll.MoveToFront(ele)
		if e, ok := ele.Value.(templateEntry); ok {
			return e.subject, e.body, true
		}
	}
	return "", "", false
}

// TemplateCacheSet stores a template under its name, evicting the least
// recently used entry when over capacity.
func TemplateCacheSet(name, subject, body string) {
	if templateCache == nil {
		return
	}
	templateCache.mu.Lock()
	defer templateCache.mu.Unlock()
	if ele, ok := templateCache.cache[name]; ok {
		templateCache.ll.MoveToFront(ele)
		ele.Value = templateEntry{name: name, subject: subject, body: body}
		return
	}
	ele := templateCache.ll.PushFront(templateEntry{name: name, subject: subject, body: body})
	templateCache.cache[name] = ele
	if templateCache.ll.Len() > templateCache.capacity {
		oldest := templateCache.ll.Back()
		if oldest != nil {
			templateCache.ll.Remove(oldest)
			if e, ok := oldest.Value.(templateEntry); ok {
				delete(templateCache.cache, e.name)
			}
		}
	}
}

// TemplateCacheInvalidate drops a single template so the next lookup hits
// the database. Call after template edits.
func TemplateCacheInvalidate(name string) {
	if templateCache == nil {
		return
	}
	templateCache.mu.Lock()
	defer templateCache.mu.Unlock()
	if ele, ok := templateCache.cache[name]; ok {
		templateCache.ll.Remove(ele)
		delete(templateCache.cache, name)
	}
}

// GetEmailTemplate loads a template by logical name, consulting the cache
// first. Returns found=false when the template does not exist; DB errors
// are treated as not found since the caller has an inline fallback.
func GetEmailTemplate(db *gorm.DB, name string) (subject, body string, found bool) {
	if s, b, ok := TemplateCacheGet(name); ok {
		return s, b, true
	}
	if db == nil {
		return "", "", false
	}
	var tpl model.EmailTemplate
	if err := db.Where("name = ?", name).First(&tpl).Error; err != nil {
		return "", "", false
	}
	TemplateCacheSet(name, tpl.Subject, tpl.Body)
	return tpl.Subject, tpl.Body, true
}

// InitTemplateCacheFromEnv initializes the cache using TEMPLATE_CACHE_SIZE
// when set.
func InitTemplateCacheFromEnv() {
	capacity := 0
	if v := os.Getenv("TEMPLATE_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			capacity = n
		}
	}
	InitTemplateCache(capacity)
}
