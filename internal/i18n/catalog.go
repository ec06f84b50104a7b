package i18n

import "strings"

// Supported languages
type Language string

const (
	LanguageEN Language = "en"
	LanguageTR Language = "tr"
	LanguageFR Language = "fr"
)

const DefaultLanguage = LanguageEN

// Parse maps a configured language code to a supported Language, falling
// back to English.
func Parse(code string) Language {
	switch Language(strings.ToLower(code)) {
	case LanguageTR:
		return LanguageTR
	case LanguageFR:
		return LanguageFR
	default:
		return LanguageEN
	}
}

var catalogs = map[Language]map[string]string{
	LanguageEN: {
		KeyProgressAccepted:   "Request accepted",
		KeyProgressUploading:  "Uploading image to the background removal service...",
		KeyProgressProcessing: "Processing image...",
		KeyProgressWaiting:    "Waiting for the model (attempt {attempt})...",
		KeyProgressFinalizing: "Downloading result...",
		KeyDoneLayerCreated:   "New layer created with background removed: {name}",
		KeyDoneFileCreated:    "New image created with background removed: {path}",
		KeyCancelled:          "Operation cancelled",
		KeyErrMissingAPIKey:   "API key is required",
		KeyErrAuth:            "The API rejected the key. Check your credentials and try again.",
		KeyErrPayload:         "The image could not be sent: {reason}",
		KeyErrNetwork:         "Network error: {reason}",
		KeyErrTimeout:         "The service did not respond in time. The request was abandoned.",
		KeyErrRemote:          "The model failed: {reason}",
		KeyErrIntegration:     "Background removal finished remotely but the result could not be applied: {reason}",
	},
	LanguageTR: {
		KeyProgressAccepted:   "İstek kabul edildi",
		KeyProgressUploading:  "Görüntü arka plan kaldırma servisine yükleniyor...",
		KeyProgressProcessing: "Görüntü işleniyor...",
		KeyProgressWaiting:    "Model bekleniyor (deneme {attempt})...",
		KeyProgressFinalizing: "Sonuç indiriliyor...",
		KeyDoneLayerCreated:   "Arka planı kaldırılmış yeni katman oluşturuldu: {name}",
		KeyDoneFileCreated:    "Arka planı kaldırılmış yeni görüntü oluşturuldu: {path}",
		KeyCancelled:          "İşlem iptal edildi",
		KeyErrMissingAPIKey:   "API anahtarı gerekli",
		KeyErrAuth:            "API anahtarı reddedildi. Bilgilerinizi kontrol edip tekrar deneyin.",
		KeyErrPayload:         "Görüntü gönderilemedi: {reason}",
		KeyErrNetwork:         "Ağ hatası: {reason}",
		KeyErrTimeout:         "Servis zamanında yanıt vermedi. İstek bırakıldı.",
		KeyErrRemote:          "Model başarısız oldu: {reason}",
		KeyErrIntegration:     "Arka plan kaldırma uzakta tamamlandı ancak sonuç uygulanamadı: {reason}",
	},
	LanguageFR: {
		KeyProgressAccepted:   "Demande acceptée",
		KeyProgressUploading:  "Envoi de l'image au service de détourage...",
		KeyProgressProcessing: "Traitement de l'image...",
		KeyProgressWaiting:    "En attente du modèle (essai {attempt})...",
		KeyProgressFinalizing: "Téléchargement du résultat...",
		KeyDoneLayerCreated:   "Nouveau calque créé sans arrière-plan : {name}",
		KeyDoneFileCreated:    "Nouvelle image créée sans arrière-plan : {path}",
		KeyCancelled:          "Opération annulée",
		KeyErrMissingAPIKey:   "Une clé API est requise",
		KeyErrAuth:            "La clé API a été refusée. Vérifiez vos identifiants et réessayez.",
		KeyErrPayload:         "L'image n'a pas pu être envoyée : {reason}",
		KeyErrNetwork:         "Erreur réseau : {reason}",
		KeyErrTimeout:         "Le service n'a pas répondu à temps. La demande a été abandonnée.",
		KeyErrRemote:          "Le modèle a échoué : {reason}",
		KeyErrIntegration:     "Le détourage a abouti côté distant mais le résultat n'a pas pu être appliqué : {reason}",
	},
}

// Localize renders a message key with {name} placeholders substituted from
// params. Unknown languages fall back to English; unknown keys fall back
// to the key itself so a missing translation is visible, not fatal.
func Localize(lang Language, key string, params map[string]string) string {
	catalog, ok := catalogs[lang]
	if !ok {
		catalog = catalogs[DefaultLanguage]
	}
	tmpl, ok := catalog[key]
	if !ok {
		tmpl, ok = catalogs[DefaultLanguage][key]
		if !ok {
			return key
		}
	}
	if len(params) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
