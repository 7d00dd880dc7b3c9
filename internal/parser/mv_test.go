package parser

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitPaths(res *Result) map[string]Unit {
	m := make(map[string]Unit, len(res.Units))
	for _, u := range res.Units {
		m[u.Path.String()] = u
	}
	return m
}

// jsonAt walks a decoded JSON value by alternating map keys and list
// indexes.
func jsonAt(t *testing.T, v any, steps ...any) any {
	t.Helper()
	for _, s := range steps {
		switch k := s.(type) {
		case string:
			m, ok := v.(map[string]any)
			require.True(t, ok, "expected object at %v", s)
			v = m[k]
		case int:
			l, ok := v.([]any)
			require.True(t, ok, "expected array at %v", s)
			v = l[k]
		}
	}
	return v
}

const mapJSON = `{"displayName":"はじまりの村","bgm":{"name":"Theme1","volume":90,"pitch":100,"pan":0},"events":[null,{"id":1,"name":"EV001","note":"","pages":[{"list":[{"code":101,"indent":0,"parameters":["Actor1",0,0,2,"ハロルド"]},{"code":401,"indent":0,"parameters":["こんにちは。"]},{"code":401,"indent":0,"parameters":["元気ですか?"]},{"code":102,"indent":0,"parameters":[["はい","いいえ"],1]},{"code":402,"indent":0,"parameters":[0,"はい"]},{"code":0,"indent":0,"parameters":[]}]}]}]}`

func TestMVParserMapEvents(t *testing.T) {
	res, err := NewMVParser().Parse("data/Map001.json", []byte(mapJSON), Options{TranslateNotes: true})
	require.NoError(t, err)

	units := unitPaths(res)
	require.Len(t, units, 6)
	assert.Equal(t, "はじまりの村", units["displayName"].Text)
	assert.Equal(t, ContextName, units["events[1].pages[0].list[0].parameters[4]"].Context)
	assert.Equal(t, "ハロルド", units["events[1].pages[0].list[0].parameters[4]"].Text)
	assert.Equal(t, "こんにちは。\n元気ですか?", units["events[1].pages[0].list[1].parameters[0].@MERGE{2}"].Text)
	assert.Equal(t, ContextDialogue, units["events[1].pages[0].list[1].parameters[0].@MERGE{2}"].Context)
	assert.Equal(t, "はい", units["events[1].pages[0].list[3].parameters[0][0]"].Text)
	assert.Equal(t, "いいえ", units["events[1].pages[0].list[3].parameters[0][1]"].Text)
	assert.Equal(t, "はい", units["events[1].pages[0].list[4].parameters[1]"].Text)

	for _, u := range res.Units {
		assert.NotEqual(t, "EV001", u.Text, "event names are identifiers")
		assert.NotEqual(t, "Theme1", u.Text, "audio names are assets")
	}
}

func TestMVParserApplyResplit(t *testing.T) {
	res, err := NewMVParser().Parse("data/Map001.json", []byte(mapJSON), Options{})
	require.NoError(t, err)

	out, skipped, err := res.Apply(map[string]string{
		"displayName": "Village of Beginnings",
		"events[1].pages[0].list[1].parameters[0].@MERGE{2}": "Hello there.\nHow are you?",
		"events[1].pages[0].list[3].parameters[0][0]":        "Yes",
		"events[1].pages[0].list[4].parameters[1]":           "Yes",
		"no.such.unit": "x",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)

	var m any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, "Village of Beginnings", jsonAt(t, m, "displayName"))
	assert.Equal(t, "Hello there.", jsonAt(t, m, "events", 1, "pages", 0, "list", 1, "parameters", 0))
	assert.Equal(t, "How are you?", jsonAt(t, m, "events", 1, "pages", 0, "list", 2, "parameters", 0))
	assert.Equal(t, "Yes", jsonAt(t, m, "events", 1, "pages", 0, "list", 3, "parameters", 0, 0))
	assert.Equal(t, "いいえ", jsonAt(t, m, "events", 1, "pages", 0, "list", 3, "parameters", 0, 1))
	assert.Equal(t, "Yes", jsonAt(t, m, "events", 1, "pages", 0, "list", 4, "parameters", 1))
	// Untouched fields survive byte-exact.
	assert.Equal(t, "ハロルド", jsonAt(t, m, "events", 1, "pages", 0, "list", 0, "parameters", 4))
}

func TestMVParserApplyFewerLines(t *testing.T) {
	res, err := NewMVParser().Parse("data/Map001.json", []byte(mapJSON), Options{})
	require.NoError(t, err)

	out, skipped, err := res.Apply(map[string]string{
		"events[1].pages[0].list[1].parameters[0].@MERGE{2}": "One line only",
	})
	require.NoError(t, err)
	assert.Zero(t, skipped)

	var m any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, "One line only", jsonAt(t, m, "events", 1, "pages", 0, "list", 1, "parameters", 0))
	assert.Equal(t, "", jsonAt(t, m, "events", 1, "pages", 0, "list", 2, "parameters", 0))
}

const commonEventsJSON = `[null,{"id":1,"list":[{"code":355,"indent":0,"parameters":["const msg = \"こんにちは\";"]},{"code":655,"indent":0,"parameters":["window.alert(msg);"]},{"code":0,"indent":0,"parameters":[]}],"name":"greet","switchId":1,"trigger":0}]`

func TestMVParserScriptMerge(t *testing.T) {
	res, err := NewMVParser().Parse("data/CommonEvents.json", []byte(commonEventsJSON), Options{})
	require.NoError(t, err)

	units := unitPaths(res)
	u, ok := units["[1].list[0].parameters[0].@MERGE{2}.@JS{0}"]
	require.True(t, ok, "script literal unit missing")
	assert.Equal(t, "こんにちは", u.Text)
	assert.Equal(t, ContextScript, u.Context)

	out, skipped, err := res.Apply(map[string]string{
		"[1].list[0].parameters[0].@MERGE{2}.@JS{0}": "Hello",
	})
	require.NoError(t, err)
	assert.Zero(t, skipped)

	var m any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, `const msg = "Hello";`, jsonAt(t, m, 1, "list", 0, "parameters", 0))
	assert.Equal(t, "window.alert(msg);", jsonAt(t, m, 1, "list", 1, "parameters", 0))
}

const pluginsJS = "// Generated by RPG Maker.\n" +
	"var $plugins =\n[\n" +
	`{"name":"Window","status":true,"description":"メッセージ拡張","parameters":{"Greeting":"こんにちは","Width":"816","Choices":"{\"yes\":\"はい\",\"position\":\"left\"}","Deep":"[\"{\\\"label\\\":\\\"こんにちは\\\"}\"]"}}` +
	"\n];\n"

func TestMVParserPlugins(t *testing.T) {
	p := ForFile("js/plugins.js")
	require.NotNil(t, p)

	res, err := p.Parse("js/plugins.js", []byte(pluginsJS), Options{})
	require.NoError(t, err)

	units := unitPaths(res)
	require.Len(t, units, 4)
	assert.Equal(t, "メッセージ拡張", units["[0].description"].Text)
	assert.Equal(t, "こんにちは", units["[0].parameters.Greeting"].Text)
	assert.Equal(t, "はい", units["[0].parameters.Choices.@JSON.yes"].Text)
	assert.Equal(t, "こんにちは", units["[0].parameters.Deep.@JSON[0].@JSON.label"].Text)
	for _, u := range res.Units {
		assert.NotEqual(t, "Window", u.Text, "plugin names are load identifiers")
		assert.NotEqual(t, "left", u.Text)
		assert.NotEqual(t, "816", u.Text)
	}
}

func TestMVParserPluginsApply(t *testing.T) {
	res, err := NewMVParser().Parse("js/plugins.js", []byte(pluginsJS), Options{})
	require.NoError(t, err)

	out, skipped, err := res.Apply(map[string]string{
		"[0].description":                      "Message extensions",
		"[0].parameters.Choices.@JSON.yes":     "Yes",
		"[0].parameters.Deep.@JSON[0].@JSON.label": "Hi",
	})
	require.NoError(t, err)
	assert.Zero(t, skipped)

	s := string(out)
	assert.True(t, strings.HasPrefix(s, "// Generated by RPG Maker.\n"))
	assert.True(t, strings.HasSuffix(s, "];\n"))
	assert.Contains(t, s, `"description":"Message extensions"`)
	assert.Contains(t, s, `{\"yes\":\"Yes\",\"position\":\"left\"}`)
	assert.Contains(t, s, `[\"{\\\"label\\\":\\\"Hi\\\"}\"]`)
}

const systemJSON = `{"gameTitle":"伝説の勇者","currencyUnit":"ゴールド","terms":{"basic":["レベル","Lv"],"commands":["戦う",null],"messages":{"alwaysDash":"常時ダッシュ"}},"switches":["","スイッチ1"],"sounds":[{"name":"Cursor1","volume":90,"pitch":100,"pan":0}]}`

func TestMVParserSystemTerms(t *testing.T) {
	res, err := NewMVParser().Parse("data/System.json", []byte(systemJSON), Options{})
	require.NoError(t, err)

	units := unitPaths(res)
	require.Len(t, units, 6)
	assert.Equal(t, "伝説の勇者", units["gameTitle"].Text)
	assert.Equal(t, "ゴールド", units["currencyUnit"].Text)
	assert.Equal(t, "レベル", units["terms.basic[0]"].Text)
	assert.Equal(t, "Lv", units["terms.basic[1]"].Text)
	assert.Equal(t, "戦う", units["terms.commands[0]"].Text)
	assert.Equal(t, "常時ダッシュ", units["terms.messages.alwaysDash"].Text)
	assert.Equal(t, ContextTerm, units["terms.basic[0]"].Context)
}

const itemsJSON = `[null,{"id":1,"name":"ポーション","description":"HPを回復する。","note":"<description>強力な薬です。</description>\nRare drop item","params":[0,0]}]`

func TestMVParserNotes(t *testing.T) {
	res, err := NewMVParser().Parse("data/Items.json", []byte(itemsJSON), Options{TranslateNotes: true})
	require.NoError(t, err)

	units := unitPaths(res)
	require.Len(t, units, 4)
	assert.Equal(t, "強力な薬です。", units["[1].note.@TAG{0}"].Text)
	assert.Equal(t, "Rare drop item", units["[1].note.@TAG{1}"].Text)

	out, skipped, err := res.Apply(map[string]string{
		"[1].note.@TAG{0}": "A potent medicine.",
		"[1].note.@TAG{1}": "Objet rare",
	})
	require.NoError(t, err)
	assert.Zero(t, skipped)

	var m any
	require.NoError(t, json.Unmarshal(out, &m))
	assert.Equal(t, "<description>A potent medicine.</description>\nObjet rare", jsonAt(t, m, 1, "note"))
}

func TestMVParserNotesDisabled(t *testing.T) {
	res, err := NewMVParser().Parse("data/Items.json", []byte(itemsJSON), Options{})
	require.NoError(t, err)
	units := unitPaths(res)
	require.Len(t, units, 2)
	assert.NotContains(t, units, "[1].note.@TAG{0}")
}

const commentJSON = `[{"id":1,"list":[{"code":108,"indent":0,"parameters":["remember to feed the cat"]},{"code":408,"indent":0,"parameters":["<MiniLabel>"]},{"code":356,"indent":0,"parameters":["ShowInfo \"宝箱を見つけた!\""]},{"code":357,"indent":0,"parameters":["MessageWindow","show","表示テキスト",{"text":"ようこそ!","speed":"5"}]},{"code":0,"indent":0,"parameters":[]}],"name":""}]`

func TestMVParserCommentsAndPluginCommands(t *testing.T) {
	res, err := NewMVParser().Parse("data/CommonEvents.json", []byte(commentJSON), Options{TranslateComments: true})
	require.NoError(t, err)

	units := unitPaths(res)
	assert.Equal(t, "remember to feed the cat", units["[0].list[0].parameters[0]"].Text)
	assert.Equal(t, ContextComment, units["[0].list[0].parameters[0]"].Context)
	assert.NotContains(t, units, "[0].list[1].parameters[0]", "tag comments stay")
	assert.Equal(t, `ShowInfo "宝箱を見つけた!"`, units["[0].list[2].parameters[0]"].Text)
	assert.Equal(t, "表示テキスト", units["[0].list[3].parameters[2]"].Text)
	assert.Equal(t, "ようこそ!", units["[0].list[3].parameters[3].text"].Text)
	assert.NotContains(t, units, "[0].list[3].parameters[3].speed")
}

func TestMVParserCommentsOff(t *testing.T) {
	res, err := NewMVParser().Parse("data/CommonEvents.json", []byte(commentJSON), Options{})
	require.NoError(t, err)
	units := unitPaths(res)
	assert.NotContains(t, units, "[0].list[0].parameters[0]")
}

func TestForFile(t *testing.T) {
	assert.IsType(t, &MVParser{}, ForFile("data/Actors.json"))
	assert.IsType(t, &MVParser{}, ForFile("js/plugins.js"))
	assert.IsType(t, &AceParser{}, ForFile("Data/Items.rvdata2"))
	assert.IsType(t, &AceParser{}, ForFile("Data/Map001.rxdata"))
	assert.Nil(t, ForFile("js/main.js"))
	assert.Nil(t, ForFile("img/pic.png"))
}
