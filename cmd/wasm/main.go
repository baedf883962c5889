//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"syscall/js"

	"go.uber.org/zap"

	"github.com/kittclouds/worldbuilder/internal/logging"
	"github.com/kittclouds/worldbuilder/internal/store"
	"github.com/kittclouds/worldbuilder/internal/suggest"
	"github.com/kittclouds/worldbuilder/internal/world"
)

const Version = "0.1.0"

// memoryWorld keys the suggestion cache for the single in-memory world.
const memoryWorld = "memory"

// Global state
var (
	logger   *zap.Logger
	st       *store.SQLiteStore
	sess     *world.Session
	suggests *suggest.Service
)

func main() {
	var err error
	logger, err = logging.New("info", "json")
	if err != nil {
		logger = zap.NewNop()
	}

	st = store.New(nil,
		store.WithLogger(logger),
		store.WithChangeHook(func(ctx context.Context, c store.Change) {
			suggests.OnChange(ctx, c)
		}),
	)
	suggests = suggest.New(st, suggest.Options{}, logger)

	js.Global().Set("WorldBuilder", js.ValueOf(map[string]interface{}{
		"version":     js.FuncOf(getVersion),
		"open":        js.FuncOf(open),
		"categories":  js.FuncOf(categories),
		"columns":     js.FuncOf(columns),
		"listNames":   js.FuncOf(listNames),
		"upsert":      js.FuncOf(upsert),
		"remove":      js.FuncOf(remove),
		"getRecord":   js.FuncOf(getRecord),
		"tagChoices":  js.FuncOf(tagChoices),
		"filterTags":  js.FuncOf(filterTags),
		"setWorldMap": js.FuncOf(setWorldMap),
		"getWorldMap": js.FuncOf(getWorldMap),
		"exportWorld": js.FuncOf(exportWorld),
		"importWorld": js.FuncOf(importWorld),
		"suggestTags": js.FuncOf(suggestTags),
	}))
	logger.Info("wasm ready", zap.String("version", Version))

	select {}
}

func getVersion(this js.Value, args []js.Value) interface{} {
	return Version
}

func errorResult(msg string) interface{} {
	jsonBytes, _ := json.Marshal(map[string]interface{}{"error": msg})
	return string(jsonBytes)
}

func successResult(msg string) interface{} {
	jsonBytes, _ := json.Marshal(map[string]interface{}{"success": msg})
	return string(jsonBytes)
}

func jsonResult(v interface{}) interface{} {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return errorResult("encode result: " + err.Error())
	}
	return string(jsonBytes)
}

func ctx() context.Context {
	return suggest.WithWorld(context.Background(), memoryWorld)
}

// open replaces the in-memory world with a new one.
// Args: [worldName string]
func open(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("open requires 1 arg: worldName")
	}
	if sess != nil {
		_ = sess.Close()
	}
	var err error
	sess, err = world.OpenMemory(context.Background(), st.Registry())
	if err != nil {
		return errorResult("open failed: " + err.Error())
	}
	if err := st.CreateWorld(ctx(), sess, args[0].String()); err != nil {
		return errorResult("create world failed: " + err.Error())
	}
	suggests.Invalidate(memoryWorld)
	return successResult("opened " + args[0].String())
}

func ready() bool { return sess != nil }

func categories(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return errorResult("world not open")
	}
	cats, err := st.ListCategories(ctx(), sess)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(cats)
}

// Args: [category string]
func columns(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("columns requires 1 arg: category")
	}
	return jsonResult(st.ColumnsOf(args[0].String()))
}

// Args: [category string]
func listNames(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("listNames requires 1 arg: category")
	}
	if !ready() {
		return errorResult("world not open")
	}
	names, err := st.ListNames(ctx(), sess, args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(names)
}

// upsert saves an entry. Text fields come from fieldsJSON; an image is passed
// as an optional Uint8Array.
// Args: [category string, fieldsJSON string, onConflict string, image Uint8Array?]
func upsert(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errorResult("upsert requires 3 args: category, fieldsJSON, onConflict")
	}
	if !ready() {
		return errorResult("world not open")
	}

	var raw map[string]string
	if err := json.Unmarshal([]byte(args[1].String()), &raw); err != nil {
		return errorResult("invalid fields json: " + err.Error())
	}
	fields := make(store.Fields, len(raw)+1)
	for k, v := range raw {
		fields[k] = v
	}
	if len(args) > 3 && !args[3].IsUndefined() && !args[3].IsNull() {
		data := make([]byte, args[3].Get("length").Int())
		js.CopyBytesToGo(data, args[3])
		fields["image_data"] = data
	}

	policy, ok := store.ParseConflictPolicy(args[2].String())
	if !ok || policy == store.ConflictAsk {
		// no synchronous prompt across the bridge
		return errorResult(fmt.Sprintf("onConflict must be overwrite or skip, got %q", args[2].String()))
	}

	outcome, err := st.UpsertByName(ctx(), sess, args[0].String(), fields, store.UpsertOptions{OnConflict: policy})
	if err != nil {
		return errorResult(err.Error())
	}
	return successResult(outcome.String())
}

// Args: [category string, name string]
func remove(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("remove requires 2 args: category, name")
	}
	if !ready() {
		return errorResult("world not open")
	}
	deleted, err := st.DeleteByName(ctx(), sess, args[0].String(), args[1].String())
	if err != nil {
		return errorResult(err.Error())
	}
	if !deleted {
		return successResult("not found")
	}
	return successResult("deleted")
}

// Args: [name string]
// Returns: Record JSON or null
func getRecord(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("getRecord requires 1 arg: name")
	}
	if !ready() {
		return errorResult("world not open")
	}
	rec, err := st.GetRecord(ctx(), sess, args[0].String())
	if err != nil {
		return errorResult(err.Error())
	}
	if rec == nil {
		return "null"
	}
	return jsonResult(rec)
}

// Args: [self string]
func tagChoices(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return errorResult("world not open")
	}
	self := ""
	if len(args) > 0 {
		self = args[0].String()
	}
	labels, err := st.TagChoices(ctx(), sess, self)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(labels)
}

// Args: [labelsJSON string, category string]
func filterTags(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("filterTags requires 2 args: labelsJSON, category")
	}
	if !ready() {
		return errorResult("world not open")
	}
	var labels []string
	if err := json.Unmarshal([]byte(args[0].String()), &labels); err != nil {
		return errorResult("invalid labels json: " + err.Error())
	}
	out, err := st.FilterTagsByCategory(ctx(), sess, labels, args[1].String())
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(out)
}

// Args: [data Uint8Array]
func setWorldMap(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("setWorldMap requires 1 arg: data (Uint8Array)")
	}
	if !ready() {
		return errorResult("world not open")
	}
	data := make([]byte, args[0].Get("length").Int())
	js.CopyBytesToGo(data, args[0])
	if err := st.SetWorldMap(ctx(), sess, data); err != nil {
		return errorResult(err.Error())
	}
	return successResult(fmt.Sprintf("saved %d bytes", len(data)))
}

// Returns: Uint8Array or null
func getWorldMap(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return errorResult("world not open")
	}
	data, err := st.GetWorldMap(ctx(), sess)
	if err != nil {
		return errorResult(err.Error())
	}
	if data == nil {
		return js.Null()
	}
	jsArray := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(jsArray, data)
	return jsArray
}

func exportWorld(this js.Value, args []js.Value) interface{} {
	if !ready() {
		return errorResult("world not open")
	}
	snap, err := st.Export(ctx(), sess)
	if err != nil {
		return errorResult("export failed: " + err.Error())
	}
	return jsonResult(snap)
}

// Args: [snapshotJSON string]
func importWorld(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return errorResult("importWorld requires 1 arg: snapshotJSON")
	}
	if !ready() {
		return errorResult("world not open")
	}
	var snap store.Snapshot
	if err := json.Unmarshal([]byte(args[0].String()), &snap); err != nil {
		return errorResult("invalid snapshot json: " + err.Error())
	}
	if err := st.Import(ctx(), sess, &snap); err != nil {
		return errorResult("import failed: " + err.Error())
	}
	return successResult("imported")
}

// Args: [self string, text string, existingTags string]
func suggestTags(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return errorResult("suggestTags requires 2 args: self, text")
	}
	if !ready() {
		return errorResult("world not open")
	}
	req := suggest.Request{World: memoryWorld, Self: args[0].String(), Text: args[1].String()}
	if len(args) > 2 {
		req.Existing = args[2].String()
	}
	entries, err := suggests.Suggest(ctx(), sess, req)
	if err != nil {
		return errorResult(err.Error())
	}
	return jsonResult(entries)
}
