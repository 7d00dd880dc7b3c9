package parser

import "rpgm-translator/internal/document"

// Event command codes that can carry player-visible text. Codes outside
// this set never produce units, whatever their parameters hold.
var textEventCodes = map[int64]bool{
	101: true, 102: true, 108: true, 320: true, 324: true, 325: true,
	355: true, 356: true, 357: true, 401: true, 402: true, 403: true,
	405: true, 408: true, 655: true,
}

// databaseFields names map keys whose string values are translated
// regardless of content shape. The table is shared by database files,
// plugin metadata and nested plugin structures.
var databaseFields = map[string]bool{
	"name": true, "description": true, "nickname": true, "profile": true,
	"message1": true, "message2": true, "message3": true, "message4": true,
	"gameTitle": true, "title": true, "message": true, "help": true,
	"text": true, "msg": true, "dialogue": true,
	"displayName": true, "currencyUnit": true,
}

// skipFields hold asset references and structural identifiers; touching
// them breaks resource loading.
var skipFields = map[string]bool{
	"id": true, "animationId": true, "characterIndex": true,
	"characterName": true, "faceName": true, "faceIndex": true,
	"tilesetId": true, "battleback1Name": true, "battleback2Name": true,
	"bgm": true, "bgs": true, "parallaxName": true,
}

// systemTermSections are the System file blocks whose every string is UI
// vocabulary.
var systemTermSections = map[string]bool{
	"basic": true, "commands": true, "params": true, "messages": true,
	"elements": true, "skillTypes": true, "weaponTypes": true,
	"armorTypes": true, "equipTypes": true, "terms": true, "types": true,
}

// aceAttrs are the Marshal-side instance variables holding translatable
// database text, stored without their "@" prefix.
var aceAttrs = map[string]bool{
	"name": true, "description": true, "nickname": true, "profile": true,
	"message1": true, "message2": true, "message3": true, "message4": true,
	"display_name": true,
}

// aceSystemAttrs live on RPG::System directly.
var aceSystemAttrs = map[string]bool{
	"game_title": true, "currency_unit": true,
}

// plugin command argument keys recognized as message text (code 357).
var pluginArgKeys = map[string]bool{
	"text": true, "Text": true, "message": true, "Message": true,
	"dialogue": true, "Dialogue": true,
}

// isSoundObject detects audio descriptors like {"name":"Battle1",
// "volume":90,"pitch":100,"pan":0}; their name is an asset reference.
func isSoundObject(n *document.Node) bool {
	if n == nil || n.Kind != document.KindMap {
		return false
	}
	return n.Field("name") != nil && n.Field("volume") != nil &&
		n.Field("pitch") != nil && n.Field("pan") != nil
}

// isAceSoundObject is the Marshal-side equivalent (RPG::SE and friends).
func isAceSoundObject(n *document.Node) bool {
	if n == nil || n.Kind != document.KindObject {
		return false
	}
	return n.Field("@name") != nil && n.Field("@volume") != nil &&
		n.Field("@pitch") != nil
}
