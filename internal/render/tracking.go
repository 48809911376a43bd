package render

import (
	"fmt"
	"strings"

	"github.com/serjnsk/dl-network/internal/domain"
)

// TrackingSnippet renders the analytics tags configured for a domain binding
// into a single head-injectable fragment. An empty config yields "".
func TrackingSnippet(cfg domain.TrackingConfig) string {
	var b strings.Builder
	if cfg.GAID != "" {
		fmt.Fprintf(&b, `<script async src="https://www.googletagmanager.com/gtag/js?id=%s"></script>`+"\n", cfg.GAID)
		fmt.Fprintf(&b, `<script>window.dataLayer=window.dataLayer||[];function gtag(){dataLayer.push(arguments);}gtag('js',new Date());gtag('config','%s');</script>`+"\n", cfg.GAID)
	}
	if cfg.YMID != "" {
		fmt.Fprintf(&b, `<script>(function(m,e,t,r,i,k,a){m[i]=m[i]||function(){(m[i].a=m[i].a||[]).push(arguments)};m[i].l=1*new Date();k=e.createElement(t),a=e.getElementsByTagName(t)[0],k.async=1,k.src=r,a.parentNode.insertBefore(k,a)})(window,document,"script","https://mc.yandex.ru/metrika/tag.js","ym");ym(%s,"init",{clickmap:true,trackLinks:true,accurateTrackBounce:true});</script>`+"\n", cfg.YMID)
	}
	if cfg.FBPixel != "" {
		fmt.Fprintf(&b, `<script>!function(f,b,e,v,n,t,s){if(f.fbq)return;n=f.fbq=function(){n.callMethod?n.callMethod.apply(n,arguments):n.queue.push(arguments)};if(!f._fbq)f._fbq=n;n.push=n;n.loaded=!0;n.version='2.0';n.queue=[];t=b.createElement(e);t.async=!0;t.src=v;s=b.getElementsByTagName(e)[0];s.parentNode.insertBefore(t,s)}(window,document,'script','https://connect.facebook.net/en_US/fbevents.js');fbq('init','%s');fbq('track','PageView');</script>`+"\n", cfg.FBPixel)
	}
	if cfg.CustomScripts != "" {
		b.WriteString(cfg.CustomScripts)
		if !strings.HasSuffix(cfg.CustomScripts, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}
