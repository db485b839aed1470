package voice

import (
	"errors"
	"fmt"

	"github.com/nukhba-ai/tutor/backend/internal/model/chat"
	"github.com/nukhba-ai/tutor/backend/internal/model/voice"
)

// 用户可见的提示文案，按语言区分
type localized map[chat.Language]string

func (l localized) in(lang chat.Language) string {
	if text, ok := l[lang]; ok {
		return text
	}
	return l[chat.English]
}

var notificationTexts = map[voice.NotificationKind]localized{
	voice.NotifyPermissionDenied: {
		chat.English: "Microphone permission denied. Please allow access in browser settings.",
		chat.Arabic:  "تم رفض إذن الميكروفون. يرجى السماح بالوصول في إعدادات المتصفح.",
		chat.Hindi:   "माइक्रोफ़ोन अनुमति अस्वीकार कर दी गई। कृपया ब्राउज़र सेटिंग्स में अनुमति दें।",
	},
	voice.NotifyAudioCapture: {
		chat.English: "Microphone access denied. Please check your settings.",
		chat.Arabic:  "لا يمكن الوصول إلى الميكروفون. يرجى التحقق من الإعدادات.",
		chat.Hindi:   "माइक्रोफ़ोन तक पहुंच नहीं मिल सकी। कृपया सेटिंग्स जांचें।",
	},
	voice.NotifyNetwork: {
		chat.English: "Network error. Please check your internet connection.",
		chat.Arabic:  "خطأ في الشبكة. يرجى التحقق من اتصالك بالإنترنت.",
		chat.Hindi:   "नेटवर्क त्रुटि। कृपया अपने इंटरनेट कनेक्शन की जांच करें।",
	},
	voice.NotifyUnsupported: {
		chat.English: "Speech is not supported in this environment. Please use text input.",
		chat.Arabic:  "الكلام غير مدعوم في هذه البيئة. يرجى استخدام الإدخال النصي.",
		chat.Hindi:   "इस वातावरण में भाषण समर्थित नहीं है। कृपया टेक्स्ट इनपुट का उपयोग करें।",
	},
	voice.NotifyRateLimited: {
		chat.English: "You've reached your daily limit. Please upgrade to Premium or try again tomorrow.",
		chat.Arabic:  "لقد وصلت إلى حدك اليومي. يرجى الترقية إلى بريميوم أو المحاولة مرة أخرى غداً.",
		chat.Hindi:   "आपने अपनी दैनिक सीमा पूरी कर ली है। कृपया प्रीमियम में अपग्रेड करें या कल फिर कोशिश करें।",
	},
	voice.NotifySpeechOutput: {
		chat.English: "Error occurred while speaking text.",
		chat.Arabic:  "حدث خطأ في قراءة النص.",
		chat.Hindi:   "पाठ पढ़ने में त्रुटि हुई।",
	},
	voice.NotifyRemoteService: {
		chat.English: "The tutor could not answer right now. Please try again.",
		chat.Arabic:  "لم يتمكن المدرس من الإجابة الآن. يرجى المحاولة مرة أخرى.",
		chat.Hindi:   "शिक्षक अभी उत्तर नहीं दे सका। कृपया पुनः प्रयास करें।",
	},
	voice.NotifyBusy: {
		chat.English: "Please wait for the current answer to finish.",
		chat.Arabic:  "يرجى الانتظار حتى تنتهي الإجابة الحالية.",
		chat.Hindi:   "कृपया वर्तमान उत्तर पूरा होने तक प्रतीक्षा करें।",
	},
}

var recognitionUnknown = localized{
	chat.English: "Speech recognition error: %s",
	chat.Arabic:  "خطأ في التعرف على الصوت: %s",
	chat.Hindi:   "भाषण पहचान त्रुटि: %s",
}

// Notify builds the localized notification for kind.
func Notify(kind voice.NotificationKind, lang chat.Language) voice.Notification {
	return voice.Notification{Kind: kind, Message: notificationTexts[kind].in(lang)}
}

// NotificationFor classifies err and renders it in lang. Every failure of a
// turn is surfaced through exactly one notification built here.
func NotificationFor(err error, lang chat.Language) voice.Notification {
	var (
		captureErr *voice.CaptureError
		remoteErr  *voice.RemoteServiceError
		netErr     *voice.NetworkError
	)

	switch {
	case errors.Is(err, voice.ErrRateLimitExceeded):
		return Notify(voice.NotifyRateLimited, lang)
	case errors.Is(err, voice.ErrTurnInProgress):
		return Notify(voice.NotifyBusy, lang)
	case errors.Is(err, voice.ErrUnsupportedEnvironment):
		return Notify(voice.NotifyUnsupported, lang)
	case errors.Is(err, voice.ErrPermissionDenied):
		n := Notify(voice.NotifyPermissionDenied, lang)
		if errors.As(err, &captureErr) {
			n.Code = captureErr.Code
		}
		return n
	case errors.Is(err, voice.ErrAudioCaptureUnavailable):
		n := Notify(voice.NotifyAudioCapture, lang)
		n.Code = "audio-capture"
		return n
	case errors.Is(err, voice.ErrSpeechOutput):
		return Notify(voice.NotifySpeechOutput, lang)
	case errors.As(err, &remoteErr):
		n := Notify(voice.NotifyRemoteService, lang)
		n.Status = remoteErr.Status
		return n
	case errors.As(err, &netErr):
		n := Notify(voice.NotifyNetwork, lang)
		if errors.As(err, &captureErr) {
			n.Code = captureErr.Code
		}
		return n
	case errors.As(err, &captureErr):
		return voice.Notification{
			Kind:    voice.NotifyRecognitionUnknown,
			Message: fmt.Sprintf(recognitionUnknown.in(lang), captureErr.Code),
			Code:    captureErr.Code,
		}
	default:
		return Notify(voice.NotifyNetwork, lang)
	}
}
