package engine

// Scripted replies. These are the deterministic fallbacks for every phase;
// the contextual reply cache may replace some of them when configured.

const (
	msgGreeting = "*¡Buen día, veci! 😊*\n" +
		"¿Qué deseas hoy?\n\n" +
		"Haz tu pedido aquí 👇🏻\n" +
		"🌐 https://cocina-casera.web.app/\n\n" +
		"*⏰ Horarios de atención:*\n" +
		"Desayuno: 7:00 a. m. – 11:00 a. m.\n" +
		"Almuerzo: 11:00 a. m. – 3:55 p. m.\n\n" +
		"Gracias por tu apoyo 💛\n" +
		"*Cocina Casera — siempre contigo.*"

	msgWebOrderConfirmation = "👋 ¡Hola veci!\n" +
		"Tu pedido hecho en la página *ya fue recibido* y está en preparación. 🍽️🔥\n\n" +
		"Pronto uno de nuestros domiciliarios te enviará un mensaje apenas salga.\n\n" +
		"📲 Si vas a pagar por transferencia, envía la captura del comprobante *solo por este chat*.\n\n" +
		"¡Gracias por pedir en Cocina Casera! 💛"

	msgExplanation = "*Veci, parece que aún no estás siguiendo la dinámica 😊*\n" +
		"Te explico de nuevo:\n\n" +
		"*👉 Mira el video que te envié* o este también es otro de apoyo.\n" +
		"*🔗 Haz clic en el link* para hacer tu pedido directamente desde la página.\n" +
		"https://cocina-casera.web.app/\n\n" +
		"Ahí eliges todo rapidito y sin complicarte.\n" +
		"Estoy pendiente 💛"

	msgDuplicateOrder = "*Veci, veo que ya hiciste un pedido hace un momento 😊*\n\n" +
		"Si quieres hacer *más pedidos*, no es necesario enviar uno por uno. " +
		"Y si te pasó por alto, no te preocupes.\n\n" +
		"*👉 Mira este video* que te explica cómo duplicar y hacer varios pedidos juntos de forma más rápida.\n\n" +
		"¡Es muy fácil! 💛"

	msgMultipleOrdersTutorial = "*¡Hola, veci! 👋😊*\n" +
		"Te comparto este video para que veas cómo pedir varios almuerzos o desayunos en un solo envío por WhatsApp, sin salir de la página ni repetir el proceso.\n\n" +
		"Haz tu pedido aquí 👇\n" +
		"🌐 https://cocina-casera.web.app/\n\n" +
		"⏰ *Horarios de atención:*\n" +
		"Desayuno: 7:00 a. m. – 11:00 a. m.\n" +
		"Almuerzo: 11:00 a. m. – 3:55 p. m.\n\n" +
		"Gracias por preferirnos 💛\n" +
		"Cocina Casera — sabor y facilidad en un mismo lugar 🍽️✨"

	msgTroubleshootSending = "¿No te deja enviar tu pedido por WhatsApp? 😊\n" +
		"Mira este video rápido y soluciona el problema en segundos.\n\n" +
		"Haz tu pedido aquí 👇🏻\n" +
		"🌐 https://cocina-casera.web.app/\n\n" +
		"⏰ *Horarios de atención:*\n" +
		"Desayuno: 7:00 a. m. – 11:00 a. m.\n" +
		"Almuerzo: 11:00 a. m. – 3:55 p. m.\n\n" +
		"Cocina Casera — siempre contigo 💛"

	msgAssistanceOptions = "*¡Hola! ¿En qué puedo ayudarte hoy? 😊*\n" +
		"Selecciona una opción:\n\n" +
		"*1️⃣ Ayuda humana*\n" +
		"*2️⃣ No me deja enviar el pedido*\n" +
		"*3️⃣ Cómo hago más pedidos*\n" +
		"*4️⃣ ¿Sí llegan a mi dirección?*\n" +
		"*5️⃣ Quiero hacer un pedido*"

	msgOptionHelp = "*Para seleccionar una opción, veci 😊*\n\n" +
		"Solo escribe el *número* de la opción que necesitas.\n" +
		"Por ejemplo: *1*, *2*, *3*, *4* o *5*\n\n" +
		"También puedes escribir el número en letra, como:\n" +
		"• *uno* → para opción 1\n" +
		"• *dos* → para opción 2\n" +
		"Y así sucesivamente 💛\n\n" +
		"¿Cuál opción necesitas?"

	msgHumanHelpRequested = "*Ya casi, veci 😊*\n" +
		"En un momento alguien te escribirá.\n" +
		"Gracias por tu paciencia 💛\n\n" +
		"⏱️ *Tiempo de espera: máximo 5 a 10 minutos.*\n" +
		"Si no recibes respuesta en ese tiempo, te lo haremos saber."

	msgStillTrying = "*Veci, seguimos intentando 💛*\n" +
		"El equipo sigue ocupado, pero no te hemos olvidado.\n" +
		"Apenas alguien esté libre te escribirá. Gracias por esperar 🙏"

	msgHelpTimeoutApology = "*Veci, qué pena contigo 🙏💛*\n" +
		"En este momento hay *muchos pedidos* y nadie del equipo ha podido responderte.\n\n" +
		"Dime cómo seguimos:"

	msgFallbackMenu = "*¿Qué prefieres? 😊*\n\n" +
		"*1️⃣ Esperar un poco más*\n" +
		"*2️⃣ Resolverlo con las opciones automáticas*\n" +
		"*3️⃣ Dejar un número para que te llamemos*"

	msgKeepWaiting = "*Perfecto, veci 💛*\n" +
		"Seguiremos intentando comunicarte con alguien del equipo.\n" +
		"Te avisaremos cuando estén disponibles."

	msgAutomatedOptionsIntro = "*¡Perfecto! Te muestro las opciones automáticas 😊*"

	msgAskCallbackNumber = "*Entendido, veci 💛*\n\n" +
		"Déjanos tu número de contacto y te llamaremos o escribiremos lo más pronto posible.\n\n" +
		"*Escribe tu número aquí* (ej: 3001234567)"

	msgInvalidCallbackNumber = "*Por favor, escribe un número de teléfono válido* 📱\n\nEjemplo: 3001234567"

	msgDeliveryCoverage = "*Para confirmar si llegamos a tu dirección 🛵💛*\n" +
		"Solo debes hacer el pedido desde la página.\n" +
		"Si el sistema te deja *confirmar la dirección,* significa que *sí te podemos atender.*"

	msgPaymentReminder = "Por favor, comparte el comprobante de pago 📲💳"

	msgLongWaitReminder = "Veci, aún estoy esperando el comprobante de pago 📲💳\n\n" +
		"Cuando puedas, envíalo por aquí 😊"

	msgReceiptReceivedManual = "Comprobante recibido. ¡Muchas gracias, veci! 💛"

	msgFarewell = "¡Con mucho gusto, veci! 💛\n\n" +
		"Cuando necesites algo más, aquí estaré. ¡Que tengas un excelente día! 😊"

	msgFollowUpPrompt = "Hola, ¿cómo estás? ¿Quieres hacer otro pedido, sí o no?"

	msgTransferNotFinalized = "*⚠️ Esperando confirmación de pago* 📲\n\n" +
		"Veo que la transferencia aún no se ha completado.\n\n" +
		"*Por favor:*\n" +
		"1️⃣ Dale *\"Enviar\"* en la app de tu banco\n" +
		"2️⃣ Espera la confirmación\n" +
		"3️⃣ Envía el comprobante final con la fecha\n\n" +
		"Te estaré esperando, veci 💛"

	msgPaymentVerified = "*✅ ¡Pago confirmado, veci!* 💛\n\n" +
		"Recibimos tu comprobante y todo está en orden.\n" +
		"Tu pedido sigue en preparación 🍽️🔥\n\n" +
		"¡Gracias por tu compra!"

	msgProviderMismatchWarning = "ℹ️ Nota: el comprobante parece ser de un banco distinto al que elegiste en el pedido. Si fue intencional, no hay problema 😊"

	msgCallbackConfirmed = "*¡Listo, veci! 💛*\n" +
		"Guardamos tu número y te contactaremos muy pronto.\n" +
		"Gracias por tu paciencia 🙏"

	msgGenericRetry = "Hubo un error procesando tu mensaje. Intenta de nuevo, por favor."
)

// paymentAckVariants are rotated when the user says they are about to pay.
var paymentAckVariants = []string{
	"Perfecto veci, toma tu tiempo 💛\nAquí estaré pendiente del comprobante 📲",
	"Dale veci, tranquilo 😊\nTe espero con el comprobante 💛",
	"Perfecto, aquí espero 📲💛",
	"Dale veci, sin afán 💛\nEnvía el comprobante cuando puedas 📸",
}
