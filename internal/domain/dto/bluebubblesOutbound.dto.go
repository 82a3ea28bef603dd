package dto

import "encoding/json"

type SendMethod string

const (
	SendMethodPrivateAPI  SendMethod = "private-api"
	SendMethodAppleScript SendMethod = "apple-script"
)

// Expressive send effects understood by the bridge. All of them require the
// private API send method.
const (
	EffectGentle        = "com.apple.MobileSMS.expressivesend.gentle"
	EffectImpact        = "com.apple.MobileSMS.expressivesend.impact"
	EffectInvisibleInk  = "com.apple.MobileSMS.expressivesend.invisibleink"
	EffectLoud          = "com.apple.MobileSMS.expressivesend.loud"
	EffectConfetti      = "com.apple.messages.effect.CKConfettiEffect"
	EffectEcho          = "com.apple.messages.effect.CKEchoEffect"
	EffectFireworks     = "com.apple.messages.effect.CKFireworksEffect"
	EffectHappyBirthday = "com.apple.messages.effect.CKHappyBirthdayEffect"
	EffectHeart         = "com.apple.messages.effect.CKHeartEffect"
	EffectLasers        = "com.apple.messages.effect.CKLasersEffect"
	EffectShootingStar  = "com.apple.messages.effect.CKShootingStarEffect"
	EffectSparkles      = "com.apple.messages.effect.CKSparklesEffect"
	EffectSpotlight     = "com.apple.messages.effect.CKSpotlightEffect"
)

var knownEffects = map[string]struct{}{
	EffectGentle: {}, EffectImpact: {}, EffectInvisibleInk: {}, EffectLoud: {},
	EffectConfetti: {}, EffectEcho: {}, EffectFireworks: {}, EffectHappyBirthday: {},
	EffectHeart: {}, EffectLasers: {}, EffectShootingStar: {}, EffectSparkles: {},
	EffectSpotlight: {},
}

func IsKnownEffect(id string) bool {
	_, ok := knownEffects[id]
	return ok
}

// SendTextRequest is the body of POST /message/text.
type SendTextRequest struct {
	ChatGUID            string     `json:"chatGuid"`
	TempGUID            string     `json:"tempGuid"`
	Message             string     `json:"message"`
	Method              SendMethod `json:"method"`
	Subject             *string    `json:"subject,omitempty"`
	EffectID            *string    `json:"effectId,omitempty"`
	SelectedMessageGUID *string    `json:"selectedMessageGuid,omitempty"`
	PartIndex           *int       `json:"partIndex,omitempty"`
}

type ResponseMetadata struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
	Count  int `json:"count"`
}

type BridgeError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// BridgeResponse is the envelope every bridge endpoint answers with.
type BridgeResponse struct {
	Status   int               `json:"status"`
	Message  string            `json:"message"`
	Data     json.RawMessage   `json:"data,omitempty"`
	Metadata *ResponseMetadata `json:"metadata,omitempty"`
	Error    *BridgeError      `json:"error,omitempty"`
}
